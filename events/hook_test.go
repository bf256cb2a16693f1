package events

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/casualjim/bookstart/messages"
	"github.com/stretchr/testify/assert"
)

type recordingHook struct {
	mu       sync.Mutex
	prompts  []string
	chunks   []string
	replies  []string
	progress []Progress
	errs     []error
}

func (r *recordingHook) OnUserPrompt(_ context.Context, msg messages.Message[messages.UserMessage]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prompts = append(r.prompts, msg.Payload.Content)
}

func (r *recordingHook) OnAssistantChunk(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, msg.Payload.Content)
}

func (r *recordingHook) OnAssistantMessage(_ context.Context, msg messages.Message[messages.AssistantMessage]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, msg.Payload.Content)
}

func (r *recordingHook) OnProgress(_ context.Context, p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recordingHook) OnError(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func TestCompositeHook(t *testing.T) {
	a, b := &recordingHook{}, &recordingHook{}
	hook := NewCompositeHook(a, nil, b)
	ctx := context.Background()

	hook.OnUserPrompt(ctx, messages.New().UserPrompt("outline"))
	hook.OnAssistantChunk(ctx, messages.New().AssistantMessage("chunk"))
	hook.OnAssistantMessage(ctx, messages.New().AssistantMessage("reply"))
	hook.OnProgress(ctx, Progress{Stage: StageDraft, Chapter: 1})
	hook.OnError(ctx, errors.New("boom"))

	for _, h := range []*recordingHook{a, b} {
		assert.Equal(t, []string{"outline"}, h.prompts)
		assert.Equal(t, []string{"chunk"}, h.chunks)
		assert.Equal(t, []string{"reply"}, h.replies)
		assert.Len(t, h.progress, 1)
		assert.Len(t, h.errs, 1)
	}
}

func TestDispatch(t *testing.T) {
	h := &recordingHook{}
	ctx := context.Background()

	Dispatch(ctx, h, Delim{Delim: "start"})
	Dispatch(ctx, h, Request{Message: messages.UserMessage{Content: "p"}})
	Dispatch(ctx, h, Chunk{Chunk: messages.AssistantMessage{Content: "c"}})
	Dispatch(ctx, h, Response{Response: messages.AssistantMessage{Content: "r"}})
	Dispatch(ctx, h, Progress{Stage: StageDone})
	Dispatch(ctx, h, Error{Err: errors.New("e")})

	assert.Equal(t, []string{"p"}, h.prompts)
	assert.Equal(t, []string{"c"}, h.chunks)
	assert.Equal(t, []string{"r"}, h.replies)
	assert.Equal(t, StageDone, h.progress[0].Stage)
	assert.EqualError(t, h.errs[0].(Error).Err, "e")
}

func TestLoggingHookDoesNotPanic(t *testing.T) {
	h := LoggingHook()
	ctx := context.Background()
	h.OnUserPrompt(ctx, messages.New().UserPrompt("p"))
	h.OnAssistantChunk(ctx, messages.New().AssistantMessage("c"))
	h.OnAssistantMessage(ctx, messages.New().AssistantMessage("r"))
	h.OnProgress(ctx, Progress{Stage: StageDraft, Chapter: 2, Detail: "x"})
	h.OnError(ctx, errors.New("e"))
}
