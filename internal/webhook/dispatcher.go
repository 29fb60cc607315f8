package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/memohai/lineassist/internal/analysis"
	"github.com/memohai/lineassist/internal/metrics"
)

// Workflows is the subset of the analysis orchestrator used by the dispatcher.
type Workflows interface {
	HandleMessageIntelligently(ctx context.Context, text, userID string) analysis.Outcome
	AnalyzeImage(ctx context.Context, messageID, userID, prompt string) analysis.Outcome
}

// DispatcherConfig tunes workflow admission.
type DispatcherConfig struct {
	// MaxConcurrent caps running workflows; zero means unbounded.
	MaxConcurrent int
	// Deduper filters redelivered events; nil processes every delivery.
	Deduper Deduper
}

// Summary describes a dispatched payload.
type Summary struct {
	EventCount int      `json:"eventCount"`
	EventTypes []string `json:"eventTypes"`
}

// Dispatcher schedules one background workflow per actionable event.
type Dispatcher struct {
	workflows Workflows
	metrics   *metrics.Metrics
	logger    *slog.Logger
	dedupe    Deduper
	sem       *semaphore.Weighted
	wg        sync.WaitGroup
}

func NewDispatcher(log *slog.Logger, workflows Workflows, m *metrics.Metrics, cfg DispatcherConfig) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		workflows: workflows,
		metrics:   m,
		logger:    log.With(slog.String("service", "dispatcher")),
		dedupe:    cfg.Deduper,
	}
	if d.dedupe == nil {
		d.dedupe = NoopDeduper{}
	}
	if cfg.MaxConcurrent > 0 {
		d.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return d
}

// Dispatch schedules every event in p and returns without waiting for the
// workflows. Workflows run detached from ctx cancellation.
func (d *Dispatcher) Dispatch(ctx context.Context, p Payload) Summary {
	summary := Summary{
		EventCount: len(p.Events),
		EventTypes: make([]string, 0, len(p.Events)),
	}
	bg := context.WithoutCancel(ctx)
	for i, ev := range p.Events {
		eventType := EventType(ev)
		summary.EventTypes = append(summary.EventTypes, eventType)
		d.metrics.EventReceived(eventType)
		d.handleEvent(bg, i, ev)
	}
	return summary
}

// Wait blocks until every scheduled workflow has returned or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) handleEvent(ctx context.Context, index int, ev Event) {
	base := ev.Base()
	log := d.logger.With(
		slog.Int("index", index),
		slog.String("event_type", EventType(ev)),
		slog.String("webhook_event_id", base.WebhookEventID),
		slog.String("source_type", base.Source.Type),
	)

	if d.dedupe.Seen(base.WebhookEventID) && base.DeliveryContext.IsRedelivery {
		log.Info("redelivered event already handled, skipping")
		return
	}

	switch e := ev.(type) {
	case MessageEvent:
		d.handleMessage(ctx, log, e)
	case FollowEvent:
		log.Info("user followed", slog.String("user_id", e.Source.UserID))
	case UnfollowEvent:
		log.Info("user unfollowed", slog.String("user_id", e.Source.UserID))
	case JoinEvent:
		log.Info("joined chat", slog.String("group_id", e.Source.GroupID), slog.String("room_id", e.Source.RoomID))
	case LeaveEvent:
		log.Info("left chat", slog.String("group_id", e.Source.GroupID), slog.String("room_id", e.Source.RoomID))
	case PostbackEvent:
		log.Info("postback received", slog.String("data", e.Postback.Data))
	case UnknownEvent:
		if e.Err != nil {
			log.Warn("event could not be decoded", slog.Any("error", e.Err))
			return
		}
		log.Warn("unhandled event type")
	default:
		log.Warn("unhandled event", slog.String("go_type", fmt.Sprintf("%T", ev)))
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, log *slog.Logger, e MessageEvent) {
	userID := e.Source.UserID
	log = log.With(slog.String("user_id", userID))

	switch m := e.Message.(type) {
	case TextMessage:
		log.Info("text message received", slog.String("message_id", m.ID))
		if userID == "" {
			log.Info("text message has no user id, not replying")
			return
		}
		d.spawn(ctx, log, func(ctx context.Context) analysis.Outcome {
			return d.workflows.HandleMessageIntelligently(ctx, m.Text, userID)
		})
	case ImageMessage:
		log.Info("image message received",
			slog.String("message_id", m.ID),
			slog.String("content_provider", m.ContentProvider.Type),
		)
		if m.ContentProvider.Type != ProviderLine {
			log.Info("image hosted externally, not analyzing", slog.String("original_url", m.ContentProvider.OriginalContentURL))
			return
		}
		if userID == "" {
			log.Info("image message has no user id, not replying")
			return
		}
		d.spawn(ctx, log, func(ctx context.Context) analysis.Outcome {
			return d.workflows.AnalyzeImage(ctx, m.ID, userID, "")
		})
	case VideoMessage:
		log.Info("video message received", slog.String("message_id", m.ID), slog.Int64("duration_ms", m.Duration))
	case AudioMessage:
		log.Info("audio message received", slog.String("message_id", m.ID), slog.Int64("duration_ms", m.Duration))
	case FileMessage:
		log.Info("file message received", slog.String("message_id", m.ID), slog.String("file_name", m.FileName), slog.Int64("file_size", m.FileSize))
	case LocationMessage:
		log.Info("location message received", slog.String("title", m.Title), slog.Float64("latitude", m.Latitude), slog.Float64("longitude", m.Longitude))
	case StickerMessage:
		log.Info("sticker message received", slog.String("package_id", m.PackageID), slog.String("sticker_id", m.StickerID))
	case UnknownMessage:
		log.Warn("unhandled message type", slog.String("message_type", m.Type), slog.Any("error", m.Err))
	default:
		log.Warn("unhandled message", slog.String("go_type", fmt.Sprintf("%T", e.Message)))
	}
}

// spawn runs fn on its own goroutine. Admission waits, when capped, happen on
// that goroutine so Dispatch never blocks.
func (d *Dispatcher) spawn(ctx context.Context, log *slog.Logger, fn func(context.Context) analysis.Outcome) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error("workflow panicked", slog.Any("panic", r))
			}
		}()
		if d.sem != nil {
			if err := d.sem.Acquire(ctx, 1); err != nil {
				log.Error("workflow admission failed", slog.Any("error", err))
				return
			}
			defer d.sem.Release(1)
		}
		out := fn(ctx)
		if !out.OK() {
			log.Warn("workflow ended with apology", slog.String("workflow", out.Workflow), slog.String("kind", string(out.Kind)))
		}
	}()
}
