package events

import (
	"context"
	"log/slog"
	"slices"

	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/pkg/slogx"
)

// Hook receives the callbacks of an agent run and of the production workflow.
// Implementations must be safe for concurrent use: chapter tasks run in
// parallel and share a hook.
type Hook interface {
	OnUserPrompt(context.Context, messages.Message[messages.UserMessage])
	OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage])
	OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage])
	OnProgress(context.Context, Progress)
	OnError(context.Context, error)
}

// LoggingHook writes every callback to the default slog logger. Chunks are
// logged at debug level.
func LoggingHook() Hook {
	return loggingHook{}
}

type loggingHook struct{}

func (loggingHook) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	slog.DebugContext(ctx, "user prompt", slogx.Agent(msg.Sender), slog.Int("length", len(msg.Payload.Content)))
}

func (loggingHook) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	slog.DebugContext(ctx, "assistant chunk", slogx.Agent(msg.Sender), slog.String("chunk", msg.Payload.Content))
}

func (loggingHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	slog.InfoContext(ctx, "assistant message",
		slogx.Agent(msg.Sender),
		slog.String("run_id", msg.RunID.String()),
		slog.Int("length", len(msg.Payload.Content)),
	)
}

func (loggingHook) OnProgress(ctx context.Context, p Progress) {
	attrs := []any{slogx.Stage(string(p.Stage))}
	if p.Chapter > 0 {
		attrs = append(attrs, slogx.Chapter(p.Chapter))
	}
	if p.Detail != "" {
		attrs = append(attrs, slog.String("detail", p.Detail))
	}
	slog.InfoContext(ctx, "progress", attrs...)
}

func (loggingHook) OnError(ctx context.Context, err error) {
	slog.ErrorContext(ctx, "agent error", slogx.Error(err))
}

// NewCompositeHook fans every callback out to hooks, in order. Nil hooks are
// skipped.
func NewCompositeHook(hooks ...Hook) Hook {
	return CompositeHook(slices.DeleteFunc(slices.Clone(hooks), func(h Hook) bool { return h == nil }))
}

type CompositeHook []Hook

func (c CompositeHook) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	for h := range slices.Values(c) {
		h.OnUserPrompt(ctx, msg)
	}
}

func (c CompositeHook) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	for h := range slices.Values(c) {
		h.OnAssistantChunk(ctx, msg)
	}
}

func (c CompositeHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	for h := range slices.Values(c) {
		h.OnAssistantMessage(ctx, msg)
	}
}

func (c CompositeHook) OnProgress(ctx context.Context, p Progress) {
	for h := range slices.Values(c) {
		h.OnProgress(ctx, p)
	}
}

func (c CompositeHook) OnError(ctx context.Context, err error) {
	for h := range slices.Values(c) {
		h.OnError(ctx, err)
	}
}

// Dispatch turns an event back into the matching hook callback. Delim events
// are dropped.
func Dispatch(ctx context.Context, hook Hook, event Event) {
	switch e := event.(type) {
	case Request:
		hook.OnUserPrompt(ctx, messages.Message[messages.UserMessage]{
			RunID: e.RunID, TurnID: e.TurnID, Payload: e.Message, Sender: e.Sender, Timestamp: e.Timestamp, Meta: e.Meta,
		})
	case Chunk:
		hook.OnAssistantChunk(ctx, messages.Message[messages.AssistantMessage]{
			RunID: e.RunID, TurnID: e.TurnID, Payload: e.Chunk, Sender: e.Sender, Timestamp: e.Timestamp, Meta: e.Meta,
		})
	case Response:
		hook.OnAssistantMessage(ctx, messages.Message[messages.AssistantMessage]{
			RunID: e.RunID, TurnID: e.TurnID, Payload: e.Response, Sender: e.Sender, Timestamp: e.Timestamp, Meta: e.Meta,
		})
	case Progress:
		hook.OnProgress(ctx, e)
	case Error:
		hook.OnError(ctx, e)
	}
}
