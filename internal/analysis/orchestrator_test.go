package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/lineassist/internal/chat"
	"github.com/memohai/lineassist/internal/media"
	"github.com/memohai/lineassist/internal/messenger"
	"github.com/memohai/lineassist/internal/metrics"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []string
	content media.Content
	err     error
}

func (f *fakeFetcher) Fetch(_ context.Context, contentID, _ string) (media.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, contentID)
	if f.err != nil {
		return media.Content{}, f.err
	}
	return f.content, nil
}

type fakeCompleter struct {
	mu       sync.Mutex
	requests []chat.Request
	answer   string
	err      error
	panics   bool
}

func (f *fakeCompleter) Complete(_ context.Context, req chat.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.panics {
		panic("completer exploded")
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func (f *fakeCompleter) Model() string { return "test-model" }

type sent struct {
	to    string
	text  string
	isErr bool
}

type fakeMessenger struct {
	mu      sync.Mutex
	sent    []sent
	sendErr error
	failErr error
}

func (f *fakeMessenger) Send(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, text: text})
	return f.sendErr
}

func (f *fakeMessenger) SendError(_ context.Context, to, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{to: to, text: text, isErr: true})
	return f.failErr
}

func newTestOrchestrator(fetcher *fakeFetcher, completer *fakeCompleter, msgr *fakeMessenger) (*Orchestrator, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	return NewOrchestrator(nil, fetcher, completer, msgr, m), m
}

func imageContent() media.Content {
	return media.NewContent([]byte{0x89, 0x50, 0x4e, 0x47}, "image/png")
}

func TestAnalyzeImage_Success(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{content: imageContent()}
	completer := &fakeCompleter{answer: "x = 4"}
	msgr := &fakeMessenger{}
	o, m := newTestOrchestrator(fetcher, completer, msgr)

	out := o.AnalyzeImage(context.Background(), "M1", "U1", "")

	require.True(t, out.OK())
	assert.Equal(t, "x = 4", out.Text)
	assert.Equal(t, []string{"M1"}, fetcher.calls)
	require.Len(t, completer.requests, 1)
	req := completer.requests[0]
	assert.Equal(t, DefaultImagePrompt, req.Prompt)
	assert.Equal(t, "data:image/png;base64,iVBORw==", req.ImageDataURI)
	assert.Equal(t, 1000, req.MaxTokens)
	assert.Equal(t, []sent{{to: "U1", text: "x = 4"}}, msgr.sent)
	assert.InDelta(t, 1, testutil.ToFloat64(m.WorkflowOutcomes.WithLabelValues(WorkflowAnalyzeImage, metrics.ResultSuccess, "")), 0)
}

func TestAnalyzeImage_CompletionFailureSendsOneApology(t *testing.T) {
	t.Parallel()

	fetcher := &fakeFetcher{content: imageContent()}
	completer := &fakeCompleter{err: fmt.Errorf("%w: 500", chat.ErrCompletion)}
	msgr := &fakeMessenger{}
	o, _ := newTestOrchestrator(fetcher, completer, msgr)

	out := o.AnalyzeImage(context.Background(), "M1", "U1", "")

	assert.False(t, out.OK())
	assert.Equal(t, KindCompletion, out.Kind)
	assert.Len(t, fetcher.calls, 1)
	assert.Equal(t, []sent{{to: "U1", text: ImageApology, isErr: true}}, msgr.sent)
}

func TestAnalyzeImage_PanicSendsOneApology(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{panics: true}
	msgr := &fakeMessenger{}
	o, m := newTestOrchestrator(&fakeFetcher{content: imageContent()}, completer, msgr)

	var out Outcome
	require.NotPanics(t, func() {
		out = o.AnalyzeImage(context.Background(), "M1", "U1", "")
	})

	assert.Equal(t, KindUnknown, out.Kind)
	assert.ErrorIs(t, out.Err, ErrWorkflowPanic)
	assert.Equal(t, []sent{{to: "U1", text: ImageApology, isErr: true}}, msgr.sent)
	assert.InDelta(t, 1, testutil.ToFloat64(m.WorkflowOutcomes.WithLabelValues(WorkflowAnalyzeImage, metrics.ResultError, string(KindUnknown))), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.InflightWorkflows), 0)
}

func TestAnalyzeImage_FailureKinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fetcher   *fakeFetcher
		wantKind  ErrorKind
		completed bool
	}{
		{
			name:     "fetch error",
			fetcher:  &fakeFetcher{err: fmt.Errorf("%w: status 404", media.ErrContentFetch)},
			wantKind: KindContentFetch,
		},
		{
			name:     "not an image",
			fetcher:  &fakeFetcher{content: media.NewContent([]byte("%PDF"), "application/pdf")},
			wantKind: KindNotAnImage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			completer := &fakeCompleter{answer: "unused"}
			msgr := &fakeMessenger{}
			o, _ := newTestOrchestrator(tt.fetcher, completer, msgr)

			out := o.AnalyzeImage(context.Background(), "M1", "U1", "")

			assert.Equal(t, tt.wantKind, out.Kind)
			assert.Empty(t, completer.requests)
			require.Len(t, msgr.sent, 1)
			assert.True(t, msgr.sent[0].isErr)
		})
	}
}

func TestRun_DeliveryFailureStillAttemptsApology(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{answer: "hi"}
	msgr := &fakeMessenger{
		sendErr: fmt.Errorf("%w: 429", messenger.ErrDelivery),
		failErr: fmt.Errorf("%w: 429", messenger.ErrDelivery),
	}
	o, _ := newTestOrchestrator(&fakeFetcher{}, completer, msgr)

	out := o.AnalyzeText(context.Background(), "hello", "U1", "")

	assert.Equal(t, KindDelivery, out.Kind)
	require.Len(t, msgr.sent, 2)
	assert.False(t, msgr.sent[0].isErr)
	assert.Equal(t, sent{to: "U1", text: TextApology, isErr: true}, msgr.sent[1])
}

func TestAnalyzeWithInstructions_LabelAndSystem(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{answer: "a cat"}
	msgr := &fakeMessenger{}
	o, _ := newTestOrchestrator(&fakeFetcher{content: imageContent()}, completer, msgr)

	out := o.AnalyzeWithInstructions(context.Background(), "M1", "U1", "Describe it", "Be brief")

	require.True(t, out.OK())
	assert.Equal(t, "🤖 Custom Analysis:\n\na cat", out.Text)
	req := completer.requests[0]
	assert.Equal(t, "Describe it", req.Prompt)
	assert.Equal(t, "Be brief", req.System)
	assert.Equal(t, 1500, req.MaxTokens)
	assert.Equal(t, "No analysis available", req.Fallback)
}

func TestAnalyzeForUseCase(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{answer: "hazard"}
	msgr := &fakeMessenger{}
	o, _ := newTestOrchestrator(&fakeFetcher{content: imageContent()}, completer, msgr)

	out := o.AnalyzeForUseCase(context.Background(), "M1", "U1", UseCaseSafety)
	require.True(t, out.OK())
	assert.Equal(t, "🤖 Safety Analysis:\n\nhazard", out.Text)
	assert.Equal(t, useCasePrompts[UseCaseSafety].system, completer.requests[0].System)

	out = o.AnalyzeForUseCase(context.Background(), "M1", "U1", "menu")
	require.True(t, out.OK())
	assert.Equal(t, "🤖 Menu Analysis:\n\nhazard", out.Text)
	assert.Equal(t, defaultUseCasePrompt.prompt, completer.requests[1].Prompt)
}

func TestTextWorkflows_RequestShape(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{answer: "ok"}
	msgr := &fakeMessenger{}
	fetcher := &fakeFetcher{}
	o, _ := newTestOrchestrator(fetcher, completer, msgr)
	ctx := context.Background()

	o.AnalyzeText(ctx, "2+2?", "U1", "Be a calculator")
	o.SolveProblem(ctx, "my bike is broken", "U1", "")
	o.ProvideEducationalHelp(ctx, "what is gravity", "U1", "physics", "grade 5")
	o.AnalyzeQuery(ctx, "hello", "U1", "bogus")

	require.Len(t, completer.requests, 4)
	assert.Empty(t, fetcher.calls)

	assert.Equal(t, chat.Request{Prompt: "2+2?", System: "Be a calculator", MaxTokens: 1000}, completer.requests[0])

	assert.Contains(t, completer.requests[1].System, "specializes in general problems")
	assert.Contains(t, completer.requests[1].Prompt, `"my bike is broken"`)
	assert.Equal(t, 1500, completer.requests[1].MaxTokens)

	assert.Contains(t, completer.requests[2].System, "an expert physics teacher for grade 5 level.")
	assert.Contains(t, completer.requests[2].Prompt, "นักเรียนมีคำถามเกี่ยวกับ physics")
	assert.Equal(t, 1500, completer.requests[2].MaxTokens)

	assert.Equal(t, queryTemplates[ResponseHelpful].system, completer.requests[3].System)
	assert.Equal(t, 1200, completer.requests[3].MaxTokens)

	assert.Len(t, msgr.sent, 4)
	for _, s := range msgr.sent {
		assert.False(t, s.isErr)
	}
}

func TestHandleMessageIntelligently_UsesClassifiedPersona(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{answer: "ok"}
	o, _ := newTestOrchestrator(&fakeFetcher{}, completer, &fakeMessenger{})

	o.HandleMessageIntelligently(context.Background(), "ช่วยด้วย การบ้านยาก", "U1")

	require.Len(t, completer.requests, 1)
	assert.Equal(t, queryTemplates[ResponseProblemSolving].system, completer.requests[0].System)
}

func TestProcessTextMessage_Routing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind       TextKind
		wantSystem string
	}{
		{TextProblem, "specializes in general problems"},
		{TextQuestion, "an expert general teacher"},
		{TextEncouragement, "supportive and encouraging teacher"},
		{TextGeneral, "helpful and knowledgeable teacher. Provide useful"},
		{"unknown", "helpful and knowledgeable teacher. Provide useful"},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			t.Parallel()
			completer := &fakeCompleter{answer: "ok"}
			o, _ := newTestOrchestrator(&fakeFetcher{}, completer, &fakeMessenger{})

			out := o.ProcessTextMessage(context.Background(), "hello there", "U1", tt.kind)

			require.True(t, out.OK())
			require.Len(t, completer.requests, 1)
			assert.Contains(t, completer.requests[0].System, tt.wantSystem)
		})
	}
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ErrorKind(""), ClassifyError(nil))
	assert.Equal(t, KindContentFetch, ClassifyError(fmt.Errorf("x: %w", media.ErrContentFetch)))
	assert.Equal(t, KindNotAnImage, ClassifyError(ErrNotAnImage))
	assert.Equal(t, KindCompletion, ClassifyError(fmt.Errorf("%w: %w", chat.ErrCompletion, errors.New("502"))))
	assert.Equal(t, KindDelivery, ClassifyError(messenger.ErrDelivery))
	assert.Equal(t, KindUnknown, ClassifyError(errors.New("other")))
	assert.Equal(t, KindUnknown, ClassifyError(fmt.Errorf("%w: boom", ErrWorkflowPanic)))
}
