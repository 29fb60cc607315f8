package chat

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultModel is the chat model used when none is configured.
const DefaultModel = "gpt-5-mini"

// OpenAIConfig configures the OpenAI completion client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxTokensCeiling clamps Request.MaxTokens (default: DefaultMaxTokensCeiling).
	MaxTokensCeiling int
	Timeout          time.Duration
}

// OpenAIClient sends analysis requests to the OpenAI chat completions API.
type OpenAIClient struct {
	client  *openai.Client
	model   string
	ceiling int
	logger  *slog.Logger
}

// NewOpenAIClient creates a completion client. An empty API key still yields
// a client; requests then fail at the provider and surface as ErrCompletion.
func NewOpenAIClient(log *slog.Logger, cfg OpenAIConfig) *OpenAIClient {
	if log == nil {
		log = slog.Default()
	}
	conf := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		conf.BaseURL = base
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	conf.HTTPClient = &http.Client{Timeout: timeout}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	ceiling := cfg.MaxTokensCeiling
	if ceiling <= 0 {
		ceiling = DefaultMaxTokensCeiling
	}
	return &OpenAIClient{
		client:  openai.NewClientWithConfig(conf),
		model:   model,
		ceiling: ceiling,
		logger:  log.With(slog.String("service", "completion"), slog.String("model", model)),
	}
}

// Model returns the configured model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete runs one chat completion and returns the generated text. An empty
// answer yields the request fallback; provider failures wrap ErrCompletion.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:               c.model,
		Messages:            buildMessages(req),
		MaxCompletionTokens: c.maxTokens(req.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletion, err)
	}
	var text string
	if len(resp.Choices) > 0 {
		text = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if text == "" {
		c.logger.Warn("empty completion, using fallback", slog.String("finish_reason", finishReason(resp)))
		if req.Fallback != "" {
			return req.Fallback, nil
		}
		return DefaultFallback, nil
	}
	return text, nil
}

// AnalyzeImages analyzes each data URI sequentially with the same prompt.
// Results are keyed image_<index>; a failed image maps to BatchFailureText.
func (c *OpenAIClient) AnalyzeImages(ctx context.Context, dataURIs []string, prompt string) map[string]string {
	if strings.TrimSpace(prompt) == "" {
		prompt = "Please provide a brief description of this image."
	}
	results := make(map[string]string, len(dataURIs))
	for i, uri := range dataURIs {
		if strings.TrimSpace(uri) == "" {
			continue
		}
		key := "image_" + strconv.Itoa(i)
		text, err := c.Complete(ctx, Request{Prompt: prompt, ImageDataURI: uri, MaxTokens: DefaultMaxTokens})
		if err != nil {
			c.logger.Error("batch image analysis failed", slog.Int("index", i), slog.Any("error", err))
			results[key] = BatchFailureText
			continue
		}
		results[key] = text
	}
	return results
}

func (c *OpenAIClient) maxTokens(requested int) int {
	if requested <= 0 {
		requested = DefaultMaxTokens
	}
	if requested > c.ceiling {
		return c.ceiling
	}
	return requested
}

// buildMessages converts a request into the provider message sequence: an
// optional system message followed by one user turn, multi-part when an
// image is attached.
func buildMessages(req Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(req.System) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if req.ImageDataURI != "" {
		user.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: req.Prompt},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    req.ImageDataURI,
					Detail: openai.ImageURLDetailAuto,
				},
			},
		}
	} else {
		user.Content = req.Prompt
	}
	return append(messages, user)
}

func finishReason(resp openai.ChatCompletionResponse) string {
	if len(resp.Choices) == 0 {
		return "no_choices"
	}
	return string(resp.Choices[0].FinishReason)
}
