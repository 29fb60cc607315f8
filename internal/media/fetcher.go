package media

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultDataEndpoint is the LINE host serving message content.
const DefaultDataEndpoint = "https://api-data.line.me"

// FetcherConfig configures content retrieval from the messaging platform.
type FetcherConfig struct {
	// Endpoint is the content API base URL (default: DefaultDataEndpoint).
	Endpoint string
	// AccessToken is the channel access token sent as a bearer credential.
	AccessToken string
	// MaxBytes caps a single download (default: MaxContentBytes).
	MaxBytes int64
	// Timeout bounds one download when HTTPClient is nil (default: 30s).
	Timeout time.Duration
	// HTTPClient overrides the transport.
	HTTPClient *http.Client
}

// Fetcher downloads message content by id.
type Fetcher struct {
	endpoint string
	token    string
	maxBytes int64
	client   *http.Client
	logger   *slog.Logger
}

// NewFetcher creates a content fetcher.
func NewFetcher(log *slog.Logger, cfg FetcherConfig) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		endpoint = DefaultDataEndpoint
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = MaxContentBytes
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		endpoint: endpoint,
		token:    cfg.AccessToken,
		maxBytes: maxBytes,
		client:   client,
		logger:   log.With(slog.String("service", "content_fetcher")),
	}
}

// Fetch retrieves the content attached to a message. fileName is only used to
// infer the MIME type when the response carries no useful Content-Type.
// Every failure wraps ErrContentFetch and no partial bytes are returned.
func (f *Fetcher) Fetch(ctx context.Context, contentID, fileName string) (Content, error) {
	contentID = strings.TrimSpace(contentID)
	if contentID == "" {
		return Content{}, fmt.Errorf("%w: content id is required", ErrContentFetch)
	}
	reqURL := fmt.Sprintf("%s/v2/bot/message/%s/content", f.endpoint, url.PathEscape(contentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Content{}, fmt.Errorf("%w: build request: %w", ErrContentFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+f.token)

	resp, err := f.client.Do(req)
	if err != nil {
		return Content{}, fmt.Errorf("%w: get content %s: %w", ErrContentFetch, contentID, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Content{}, fmt.Errorf("%w: get content %s: unexpected status %d", ErrContentFetch, contentID, resp.StatusCode)
	}

	raw, err := ReadAllWithLimit(resp.Body, f.maxBytes)
	if err != nil {
		return Content{}, fmt.Errorf("%w: read content %s: %w", ErrContentFetch, contentID, err)
	}

	content := NewContent(raw, DetectMimeType(fileName, contentTypeHint(resp.Header.Get("Content-Type"))))
	f.logger.Debug("content retrieved",
		slog.String("content_id", contentID),
		slog.String("mime", content.MimeType),
		slog.Int("size", content.Size),
	)
	return content, nil
}

// contentTypeHint strips parameters from a Content-Type header. The generic
// binary type carries no information and yields an empty hint.
func contentTypeHint(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil || mediaType == DefaultMimeType {
		return ""
	}
	return mediaType
}
