// Package messenger delivers outbound text messages to LINE users.
package messenger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

const (
	// MaxTextLength is the LINE limit for one text message, in characters.
	MaxTextLength = 5000
	// DefaultErrorText is sent by SendError when the caller supplies none.
	DefaultErrorText = "Sorry, I encountered an error. Please try again."
	// ErrorMarker prefixes every error notice.
	ErrorMarker = "❌ "
)

// ErrDelivery indicates an outbound message could not be delivered.
var ErrDelivery = errors.New("message delivery failed")

// PushAPI is the subset of the LINE Messaging API used for delivery.
type PushAPI interface {
	PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
}

// Messenger pushes one text message per call.
type Messenger struct {
	api         PushAPI
	logger      *slog.Logger
	newRetryKey func() string
}

// New creates a Messenger backed by the LINE Messaging API. A missing access
// token does not fail construction; every send then fails with ErrDelivery.
func New(log *slog.Logger, accessToken string) (*Messenger, error) {
	if strings.TrimSpace(accessToken) == "" {
		return NewWithAPI(log, unconfiguredAPI{}), nil
	}
	api, err := messaging_api.NewMessagingApiAPI(accessToken)
	if err != nil {
		return nil, fmt.Errorf("create messaging api client: %w", err)
	}
	return NewWithAPI(log, api), nil
}

// NewWithAPI creates a Messenger over an existing push client.
func NewWithAPI(log *slog.Logger, api PushAPI) *Messenger {
	if log == nil {
		log = slog.Default()
	}
	return &Messenger{
		api:         api,
		logger:      log.With(slog.String("service", "messenger")),
		newRetryKey: uuid.NewString,
	}
}

// Send pushes text to the user as a single message.
func (m *Messenger) Send(ctx context.Context, to, text string) error {
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("%w: recipient is required", ErrDelivery)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	req := &messaging_api.PushMessageRequest{
		To: to,
		Messages: []messaging_api.MessageInterface{
			messaging_api.TextMessage{Text: truncateText(text)},
		},
	}
	if _, err := m.api.PushMessage(req, m.newRetryKey()); err != nil {
		return fmt.Errorf("%w: push to %s: %w", ErrDelivery, to, err)
	}
	m.logger.Info("message sent", slog.String("to", to))
	return nil
}

// SendError pushes an apology marked with ErrorMarker. An empty text selects
// DefaultErrorText.
func (m *Messenger) SendError(ctx context.Context, to, text string) error {
	if strings.TrimSpace(text) == "" {
		text = DefaultErrorText
	}
	return m.Send(ctx, to, ErrorMarker+text)
}

// truncateText shortens text to MaxTextLength runes, appending "..." when cut.
func truncateText(text string) string {
	if utf8.RuneCountInString(text) <= MaxTextLength {
		return text
	}
	const suffix = "..."
	runes := []rune(text)
	return string(runes[:MaxTextLength-len(suffix)]) + suffix
}

type unconfiguredAPI struct{}

func (unconfiguredAPI) PushMessage(*messaging_api.PushMessageRequest, string) (*messaging_api.PushMessageResponse, error) {
	return nil, errors.New("line channel access token is not configured")
}
