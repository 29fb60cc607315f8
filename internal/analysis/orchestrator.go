// Package analysis runs the AI workflows that turn a user message into exactly
// one outbound reply or apology.
package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/memohai/lineassist/internal/chat"
	"github.com/memohai/lineassist/internal/media"
	"github.com/memohai/lineassist/internal/metrics"
)

const tracerName = "github.com/memohai/lineassist/internal/analysis"

// Workflow names, used for logs, spans, and metrics.
const (
	WorkflowAnalyzeImage       = "analyze_image"
	WorkflowCustomInstructions = "analyze_with_instructions"
	WorkflowUseCase            = "analyze_for_use_case"
	WorkflowAnalyzeText        = "analyze_text"
	WorkflowSolveProblem       = "solve_problem"
	WorkflowEducationalHelp    = "educational_help"
	WorkflowAnalyzeQuery       = "analyze_query"
)

// ContentFetcher retrieves binary content attached to a message.
type ContentFetcher interface {
	Fetch(ctx context.Context, contentID, fileName string) (media.Content, error)
}

// Completer sends one analysis request to the AI provider.
type Completer interface {
	Complete(ctx context.Context, req chat.Request) (string, error)
}

// Messenger delivers text to a user.
type Messenger interface {
	Send(ctx context.Context, to, text string) error
	SendError(ctx context.Context, to, text string) error
}

type modelNamer interface {
	Model() string
}

// Orchestrator composes content retrieval, completion, and delivery.
type Orchestrator struct {
	fetcher   ContentFetcher
	completer Completer
	messenger Messenger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *slog.Logger
	model     string
}

// NewOrchestrator creates an Orchestrator. m may be nil.
func NewOrchestrator(log *slog.Logger, fetcher ContentFetcher, completer Completer, messenger Messenger, m *metrics.Metrics) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	model := "unknown"
	if n, ok := completer.(modelNamer); ok && n.Model() != "" {
		model = n.Model()
	}
	return &Orchestrator{
		fetcher:   fetcher,
		completer: completer,
		messenger: messenger,
		metrics:   m,
		tracer:    otel.Tracer(tracerName),
		logger:    log.With(slog.String("service", "analysis")),
		model:     model,
	}
}

// workflow describes one linear fetch, complete, send run.
type workflow struct {
	name   string
	userID string
	// imageID, when set, is fetched and attached to the request as an image.
	imageID string
	request chat.Request
	label   string
	apology string
}

func (o *Orchestrator) run(ctx context.Context, wf workflow) Outcome {
	ctx, span := o.tracer.Start(ctx, "analysis."+wf.name, trace.WithAttributes(
		attribute.String("workflow", wf.name),
		attribute.String("line.user_id", wf.userID),
		attribute.Bool("workflow.image", wf.imageID != ""),
	))
	defer span.End()

	o.metrics.WorkflowStarted()
	defer o.metrics.WorkflowDone()

	log := o.logger.With(slog.String("workflow", wf.name), slog.String("user_id", wf.userID))
	log.Info("workflow started")

	text, err := o.deliver(ctx, wf)
	if err != nil {
		kind := ClassifyError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(kind))
		log.Error("workflow failed", slog.String("kind", string(kind)), slog.Any("error", err))
		if sendErr := o.messenger.SendError(ctx, wf.userID, wf.apology); sendErr != nil {
			log.Error("send apology failed", slog.Any("error", sendErr))
		}
		o.metrics.WorkflowFinished(wf.name, string(kind))
		return Outcome{Workflow: wf.name, Kind: kind, Err: err}
	}

	log.Info("workflow completed")
	o.metrics.WorkflowFinished(wf.name, "")
	return Outcome{Workflow: wf.name, Text: text}
}

// deliver produces the answer and sends it. A panic in any collaborator is
// returned as ErrWorkflowPanic so the caller still sends the apology.
func (o *Orchestrator) deliver(ctx context.Context, wf workflow) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrWorkflowPanic, r)
		}
	}()
	text, err = o.produce(ctx, wf)
	if err != nil {
		return "", err
	}
	text = wf.label + text
	if err := o.messenger.Send(ctx, wf.userID, text); err != nil {
		return "", err
	}
	return text, nil
}

// produce performs the fetch and completion steps and returns the raw answer.
func (o *Orchestrator) produce(ctx context.Context, wf workflow) (string, error) {
	req := wf.request
	if wf.imageID != "" {
		content, err := o.fetcher.Fetch(ctx, wf.imageID, imageContentFileName)
		if err != nil {
			return "", err
		}
		o.metrics.ObserveContent(content.Size)
		if !content.IsImage() {
			return "", fmt.Errorf("%w: got %s", ErrNotAnImage, content.MimeType)
		}
		req.ImageDataURI = content.DataURI
	}

	start := time.Now()
	answer, err := o.completer.Complete(ctx, req)
	o.metrics.ObserveCompletion(o.model, err, time.Since(start))
	if err != nil {
		return "", err
	}
	return answer, nil
}

// AnalyzeImage fetches an image message and replies with its analysis. An
// empty prompt selects DefaultImagePrompt.
func (o *Orchestrator) AnalyzeImage(ctx context.Context, messageID, userID, prompt string) Outcome {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultImagePrompt
	}
	return o.run(ctx, workflow{
		name:    WorkflowAnalyzeImage,
		userID:  userID,
		imageID: messageID,
		request: chat.Request{Prompt: prompt, MaxTokens: imageMaxTokens},
		apology: ImageApology,
	})
}

// AnalyzeWithInstructions analyzes an image with caller-supplied instructions
// and an optional system prompt.
func (o *Orchestrator) AnalyzeWithInstructions(ctx context.Context, messageID, userID, instructions, system string) Outcome {
	return o.run(ctx, workflow{
		name:    WorkflowCustomInstructions,
		userID:  userID,
		imageID: messageID,
		request: chat.Request{
			Prompt:    instructions,
			System:    system,
			MaxTokens: customImageMaxTokens,
			Fallback:  customFallback,
		},
		label:   customLabel,
		apology: ImageApology,
	})
}

// AnalyzeForUseCase analyzes an image with the canned prompts for useCase.
func (o *Orchestrator) AnalyzeForUseCase(ctx context.Context, messageID, userID string, useCase UseCase) Outcome {
	p := useCasePrompt(useCase)
	return o.run(ctx, workflow{
		name:    WorkflowUseCase,
		userID:  userID,
		imageID: messageID,
		request: chat.Request{
			Prompt:    p.prompt,
			System:    p.system,
			MaxTokens: customImageMaxTokens,
			Fallback:  customFallback,
		},
		label:   useCaseLabel(useCase),
		apology: ImageApology,
	})
}

// AnalyzeText answers free text using prompt as the system instruction.
func (o *Orchestrator) AnalyzeText(ctx context.Context, text, userID, prompt string) Outcome {
	if strings.TrimSpace(prompt) == "" {
		prompt = DefaultTextPrompt
	}
	return o.run(ctx, workflow{
		name:    WorkflowAnalyzeText,
		userID:  userID,
		request: chat.Request{Prompt: text, System: prompt, MaxTokens: textMaxTokens},
		apology: TextApology,
	})
}

func (o *Orchestrator) SolveProblem(ctx context.Context, text, userID, problemContext string) Outcome {
	system, user := problemPrompt(text, problemContext)
	return o.run(ctx, workflow{
		name:    WorkflowSolveProblem,
		userID:  userID,
		request: chat.Request{Prompt: user, System: system, MaxTokens: problemMaxTokens},
		apology: TextApology,
	})
}

func (o *Orchestrator) ProvideEducationalHelp(ctx context.Context, question, userID, subject, gradeLevel string) Outcome {
	system, user := educationalPrompt(question, subject, gradeLevel)
	return o.run(ctx, workflow{
		name:    WorkflowEducationalHelp,
		userID:  userID,
		request: chat.Request{Prompt: user, System: system, MaxTokens: educationalMaxTokens},
		apology: TextApology,
	})
}

// AnalyzeQuery answers a query in the persona chosen by responseType.
func (o *Orchestrator) AnalyzeQuery(ctx context.Context, query, userID string, responseType ResponseType) Outcome {
	system, user := queryPrompt(query, responseType)
	return o.run(ctx, workflow{
		name:    WorkflowAnalyzeQuery,
		userID:  userID,
		request: chat.Request{Prompt: user, System: system, MaxTokens: queryMaxTokens},
		apology: TextApology,
	})
}

// HandleMessageIntelligently classifies text and answers it with the matching persona.
func (o *Orchestrator) HandleMessageIntelligently(ctx context.Context, text, userID string) Outcome {
	responseType := ClassifyIntent(text)
	o.logger.Debug("intent classified", slog.String("user_id", userID), slog.String("response_type", string(responseType)))
	return o.AnalyzeQuery(ctx, text, userID, responseType)
}

// TextKind is the caller's hint for ProcessTextMessage.
type TextKind string

const (
	TextGeneral       TextKind = "general"
	TextProblem       TextKind = "problem"
	TextQuestion      TextKind = "question"
	TextEncouragement TextKind = "encouragement"
)

// ProcessTextMessage routes text to the workflow for kind. Unknown kinds are
// treated as TextGeneral.
func (o *Orchestrator) ProcessTextMessage(ctx context.Context, text, userID string, kind TextKind) Outcome {
	switch kind {
	case TextProblem:
		return o.SolveProblem(ctx, text, userID, DefaultContext)
	case TextQuestion:
		return o.ProvideEducationalHelp(ctx, text, userID, DefaultSubject, "")
	case TextEncouragement:
		return o.AnalyzeQuery(ctx, text, userID, ResponseEncouraging)
	default:
		return o.HandleMessageIntelligently(ctx, text, userID)
	}
}
