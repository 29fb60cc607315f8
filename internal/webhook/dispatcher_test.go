package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/lineassist/internal/analysis"
	"github.com/memohai/lineassist/internal/chat"
	"github.com/memohai/lineassist/internal/media"
)

type workflowCall struct {
	name   string
	arg    string
	userID string
}

type fakeWorkflows struct {
	mu      sync.Mutex
	calls   []workflowCall
	panicOn string
	block   chan struct{}
}

func (f *fakeWorkflows) record(call workflowCall) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if call.arg == f.panicOn && f.panicOn != "" {
		panic("boom")
	}
}

func (f *fakeWorkflows) HandleMessageIntelligently(_ context.Context, text, userID string) analysis.Outcome {
	f.record(workflowCall{name: "text", arg: text, userID: userID})
	return analysis.Outcome{Workflow: analysis.WorkflowAnalyzeQuery, Text: "ok"}
}

func (f *fakeWorkflows) AnalyzeImage(_ context.Context, messageID, userID, _ string) analysis.Outcome {
	f.record(workflowCall{name: "image", arg: messageID, userID: userID})
	return analysis.Outcome{Workflow: analysis.WorkflowAnalyzeImage, Text: "ok"}
}

func (f *fakeWorkflows) snapshot() []workflowCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]workflowCall(nil), f.calls...)
}

func waitDispatcher(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
}

func userMessage(userID string, msg Message) MessageEvent {
	return MessageEvent{
		EventBase: EventBase{Type: EventTypeMessage, Source: Source{Type: "user", UserID: userID}},
		Message:   msg,
	}
}

func TestDispatch_RoutesActionableEvents(t *testing.T) {
	t.Parallel()

	wf := &fakeWorkflows{}
	d := NewDispatcher(nil, wf, nil, DispatcherConfig{})

	p := Payload{Events: []Event{
		userMessage("U1", TextMessage{ID: "M1", Text: "hello"}),
		userMessage("U1", ImageMessage{ID: "M2", ContentProvider: ContentProvider{Type: ProviderLine}}),
		userMessage("U1", ImageMessage{ID: "M3", ContentProvider: ContentProvider{Type: ProviderExternal, OriginalContentURL: "https://x/y.jpg"}}),
		userMessage("U1", ImageMessage{ID: "M4"}),
		userMessage("", TextMessage{ID: "M5", Text: "no user"}),
		userMessage("U1", StickerMessage{ID: "M6"}),
		userMessage("U1", VideoMessage{ID: "M7"}),
		FollowEvent{EventBase{Type: EventTypeFollow}},
		PostbackEvent{EventBase: EventBase{Type: EventTypePostback}},
		UnknownEvent{},
	}}

	summary := d.Dispatch(context.Background(), p)
	waitDispatcher(t, d)

	assert.Equal(t, 10, summary.EventCount)
	assert.Equal(t, []string{
		"message", "message", "message", "message", "message", "message", "message",
		"follow", "postback", "unknown",
	}, summary.EventTypes)
	assert.ElementsMatch(t, []workflowCall{
		{name: "text", arg: "hello", userID: "U1"},
		{name: "image", arg: "M2", userID: "U1"},
	}, wf.snapshot())
}

func TestDispatch_FailureInOneEventDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	wf := &fakeWorkflows{panicOn: "second"}
	d := NewDispatcher(nil, wf, nil, DispatcherConfig{})

	d.Dispatch(context.Background(), Payload{Events: []Event{
		userMessage("U1", TextMessage{Text: "first"}),
		userMessage("U2", TextMessage{Text: "second"}),
		userMessage("U3", TextMessage{Text: "third"}),
	}})
	waitDispatcher(t, d)

	assert.Len(t, wf.snapshot(), 3)
}

func TestDispatch_DoesNotWaitForWorkflows(t *testing.T) {
	t.Parallel()

	wf := &fakeWorkflows{block: make(chan struct{})}
	d := NewDispatcher(nil, wf, nil, DispatcherConfig{MaxConcurrent: 1})

	ctx, cancel := context.WithCancel(context.Background())
	summary := d.Dispatch(ctx, Payload{Events: []Event{
		userMessage("U1", TextMessage{Text: "a"}),
		userMessage("U1", TextMessage{Text: "b"}),
	}})
	cancel()
	assert.Equal(t, 2, summary.EventCount)
	assert.Empty(t, wf.snapshot())

	short, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer stop()
	assert.ErrorIs(t, d.Wait(short), context.DeadlineExceeded)

	close(wf.block)
	waitDispatcher(t, d)
	assert.Len(t, wf.snapshot(), 2)
}

func TestDispatch_SkipsSeenRedeliveries(t *testing.T) {
	t.Parallel()

	wf := &fakeWorkflows{}
	d := NewDispatcher(nil, wf, nil, DispatcherConfig{Deduper: NewMemoryDeduper(time.Minute)})

	first := userMessage("U1", TextMessage{Text: "hi"})
	first.WebhookEventID = "E1"
	redelivered := first
	redelivered.DeliveryContext.IsRedelivery = true
	other := userMessage("U1", TextMessage{Text: "other"})
	other.WebhookEventID = "E2"
	other.DeliveryContext.IsRedelivery = true

	d.Dispatch(context.Background(), Payload{Events: []Event{first}})
	d.Dispatch(context.Background(), Payload{Events: []Event{redelivered, other}})
	waitDispatcher(t, d)

	assert.ElementsMatch(t, []workflowCall{
		{name: "text", arg: "hi", userID: "U1"},
		{name: "text", arg: "other", userID: "U1"},
	}, wf.snapshot())
}

type countingFetcher struct {
	mu    sync.Mutex
	calls int
}

func (f *countingFetcher) Fetch(context.Context, string, string) (media.Content, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return media.NewContent([]byte{1, 2, 3}, "image/jpeg"), nil
}

type recordingCompleter struct {
	mu       sync.Mutex
	requests []chat.Request
	err      error
	panics   bool
}

func (c *recordingCompleter) Complete(_ context.Context, req chat.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.panics {
		panic("completer exploded")
	}
	if c.err != nil {
		return "", c.err
	}
	return "solution", nil
}

type recordingMessenger struct {
	mu     sync.Mutex
	sends  []string
	errors []string
}

func (m *recordingMessenger) Send(_ context.Context, to, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, to)
	return nil
}

func (m *recordingMessenger) SendError(_ context.Context, to, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, to)
	return nil
}

func TestDispatch_ImageEventEndToEnd(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		provider      string
		completionErr error
		panics        bool
		wantFetches   int
		wantRequests  int
		wantSends     []string
		wantErrors    []string
	}{
		{name: "line success", provider: ProviderLine, wantFetches: 1, wantRequests: 1, wantSends: []string{"U1"}},
		{name: "line completion failure", provider: ProviderLine, completionErr: chat.ErrCompletion, wantFetches: 1, wantRequests: 1, wantErrors: []string{"U1"}},
		{name: "line completer panic", provider: ProviderLine, panics: true, wantFetches: 1, wantRequests: 1, wantErrors: []string{"U1"}},
		{name: "external", provider: ProviderExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fetcher := &countingFetcher{}
			completer := &recordingCompleter{err: tt.completionErr, panics: tt.panics}
			msgr := &recordingMessenger{}
			o := analysis.NewOrchestrator(nil, fetcher, completer, msgr, nil)
			d := NewDispatcher(nil, o, nil, DispatcherConfig{})

			d.Dispatch(context.Background(), Payload{Events: []Event{
				userMessage("U1", ImageMessage{ID: "M1", ContentProvider: ContentProvider{Type: tt.provider}}),
			}})
			waitDispatcher(t, d)

			assert.Equal(t, tt.wantFetches, fetcher.calls)
			require.Len(t, completer.requests, tt.wantRequests)
			if tt.wantRequests > 0 {
				assert.Equal(t, "data:image/jpeg;base64,AQID", completer.requests[0].ImageDataURI)
			}
			assert.Equal(t, tt.wantSends, msgr.sends)
			assert.Equal(t, tt.wantErrors, msgr.errors)
		})
	}
}
