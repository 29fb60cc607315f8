package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

const maxBodyBytes int64 = 1 << 20 // 1 MiB

const (
	webhookPath       = "/line-webhook"
	webhookHealthPath = "/line-webhook/health"
)

type payloadDispatcher interface {
	Dispatch(ctx context.Context, p Payload) Summary
}

// Handler serves the LINE webhook endpoint.
type Handler struct {
	dispatcher payloadDispatcher
	logger     *slog.Logger
	now        func() time.Time
}

func NewHandler(log *slog.Logger, dispatcher *Dispatcher) *Handler {
	return newHandler(log, dispatcher)
}

func newHandler(log *slog.Logger, dispatcher payloadDispatcher) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		dispatcher: dispatcher,
		logger:     log.With(slog.String("handler", "line_webhook")),
		now:        time.Now,
	}
}

func (h *Handler) Register(e *echo.Echo) {
	e.POST(webhookPath, h.Handle)
	e.GET(webhookHealthPath, h.Health)
}

type processedResponse struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Timestamp  string   `json:"timestamp"`
	EventCount int      `json:"eventCount"`
	EventTypes []string `json:"eventTypes"`
}

type failureResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// Handle validates the payload, schedules its events, and acknowledges
// without waiting for the workflows to finish.
func (h *Handler) Handle(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes+1))
	if err != nil {
		h.logger.Error("read webhook body failed", slog.Any("error", err))
		return h.fail(c, http.StatusInternalServerError, "Internal server error")
	}
	if int64(len(body)) > maxBodyBytes {
		return h.fail(c, http.StatusRequestEntityTooLarge, "Payload too large")
	}

	payload, err := ParsePayload(body)
	if err != nil {
		h.logger.Warn("invalid webhook payload", slog.Any("error", err))
		return h.fail(c, http.StatusBadRequest, "Invalid webhook data format")
	}

	summary, err := h.dispatch(c.Request().Context(), payload)
	if err != nil {
		h.logger.Error("dispatch webhook failed", slog.Any("error", err))
		return h.fail(c, http.StatusInternalServerError, "Internal server error")
	}

	h.logger.Info("webhook processed",
		slog.String("destination", payload.Destination),
		slog.Int("event_count", summary.EventCount),
		slog.Any("event_types", summary.EventTypes),
	)
	return c.JSON(http.StatusOK, processedResponse{
		Success:    true,
		Message:    "Webhook processed successfully",
		Timestamp:  h.timestamp(),
		EventCount: summary.EventCount,
		EventTypes: summary.EventTypes,
	})
}

var errDispatchPanic = errors.New("dispatch panicked")

func (h *Handler) dispatch(ctx context.Context, p Payload) (summary Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("dispatch panic", slog.Any("panic", r))
			err = errDispatchPanic
		}
	}()
	return h.dispatcher.Dispatch(ctx, p), nil
}

// Health reports that the webhook endpoint is mounted.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "OK",
		"message":   "LINE webhook endpoint is healthy",
		"timestamp": h.timestamp(),
		"endpoint":  webhookPath,
		"method":    http.MethodPost,
	})
}

func (h *Handler) fail(c echo.Context, status int, message string) error {
	return c.JSON(status, failureResponse{
		Success:   false,
		Error:     message,
		Timestamp: h.timestamp(),
	})
}

func (h *Handler) timestamp() string {
	return h.now().UTC().Format(time.RFC3339Nano)
}
