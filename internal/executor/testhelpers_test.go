package executor

import (
	"context"
	"sync"
	"time"

	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/internal/retry"
	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/provider"
	"github.com/casualjim/bookstart/types"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// scriptedProvider answers each ChatCompletion call with the next script
// entry; the last entry repeats.
type scriptedProvider struct {
	mu      sync.Mutex
	scripts []script
	calls   []provider.CompletionParams
}

type script struct {
	err    error
	events []provider.StreamEvent
}

func (m *scriptedProvider) ChatCompletion(_ context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, params)
	if idx >= len(m.scripts) {
		idx = len(m.scripts) - 1
	}
	s := m.scripts[idx]
	m.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan provider.StreamEvent, len(s.events))
	for _, ev := range s.events {
		ch <- ev
	}
	close(ch)
	return ch, nil
}

func (m *scriptedProvider) Calls() []provider.CompletionParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]provider.CompletionParams(nil), m.calls...)
}

func reply(content string, usage shorttermmemory.Usage) []provider.StreamEvent {
	runID, turnID := uuid.New(), uuid.New()
	now := strfmt.DateTime(time.Now())
	return []provider.StreamEvent{
		provider.Delim{RunID: runID, TurnID: turnID, Delim: "start"},
		provider.Chunk{RunID: runID, TurnID: turnID, Chunk: messages.AssistantMessage{Content: content}, Timestamp: now},
		provider.Delim{RunID: runID, TurnID: turnID, Delim: "end"},
		provider.Response{
			RunID:      runID,
			TurnID:     turnID,
			Checkpoint: shorttermmemory.NewCheckpoint(turnID, usage),
			Response:   messages.AssistantMessage{Content: content},
			Timestamp:  now,
		},
	}
}

func streamError(err error) []provider.StreamEvent {
	return []provider.StreamEvent{provider.Error{RunID: uuid.New(), TurnID: uuid.New(), Err: err}}
}

type testModel struct {
	name     string
	provider provider.Provider
}

func (m testModel) Name() string {
	if m.name == "" {
		return "test-model"
	}
	return m.name
}

func (m testModel) Provider() provider.Provider {
	return m.provider
}

type testAgent struct {
	name         string
	model        api.Model
	instructions string
	renderErr    error
	rendered     types.ContextVars
}

func (a *testAgent) Name() string {
	if a.name == "" {
		return "writer"
	}
	return a.name
}

func (a *testAgent) Model() api.Model     { return a.model }
func (a *testAgent) Instructions() string { return a.instructions }

func (a *testAgent) RenderInstructions(cv types.ContextVars) (string, error) {
	a.rendered = cv
	if a.renderErr != nil {
		return "", a.renderErr
	}
	return a.instructions, nil
}

type recordingHook struct {
	mu       sync.Mutex
	prompts  []messages.Message[messages.UserMessage]
	chunks   []messages.Message[messages.AssistantMessage]
	replies  []messages.Message[messages.AssistantMessage]
	progress []events.Progress
	errs     []error
}

func (h *recordingHook) OnUserPrompt(_ context.Context, msg messages.Message[messages.UserMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.prompts = append(h.prompts, msg)
}

func (h *recordingHook) OnAssistantChunk(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.chunks = append(h.chunks, msg)
}

func (h *recordingHook) OnAssistantMessage(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.replies = append(h.replies, msg)
}

func (h *recordingHook) OnProgress(_ context.Context, p events.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.progress = append(h.progress, p)
}

func (h *recordingHook) OnError(_ context.Context, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func fastLocal() *Local {
	return NewLocal(
		WithRetryPolicy(retry.Policy{
			MaxAttempts:        3,
			InitialInterval:    time.Millisecond,
			BackoffCoefficient: 2,
			MaxInterval:        5 * time.Millisecond,
		}),
		WithBreaker(retry.NewBreaker(retry.BreakerSettings{Name: "test", ConsecutiveFailures: 10, OpenTimeout: time.Minute})),
	)
}
