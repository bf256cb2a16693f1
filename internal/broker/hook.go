package broker

import (
	"context"
	"log/slog"
	"time"

	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/pkg/slogx"
	"github.com/go-openapi/strfmt"
)

func forwardToHook(ctx context.Context, ch <-chan events.Event, hook events.Hook) {
	for {
		select {
		case event, ok := <-ch:
			if !ok {
				return
			}
			if ctx.Err() != nil {
				return
			}
			events.Dispatch(ctx, hook, event)
		case <-ctx.Done():
			return
		}
	}
}

// PublishingHook forwards every callback to topic. Progress events are stamped
// with book when they don't name one. Publish failures are logged and never
// interrupt the caller.
func PublishingHook(topic Topic, book string) events.Hook {
	return &publishingHook{topic: topic, book: book}
}

type publishingHook struct {
	topic Topic
	book  string
}

func (p *publishingHook) publish(ctx context.Context, event events.Event) {
	// the workflow may be shutting down; deliver what we can
	if err := p.topic.Publish(context.WithoutCancel(ctx), event); err != nil {
		slog.WarnContext(ctx, "failed to publish event", slogx.Error(err))
	}
}

func (p *publishingHook) OnUserPrompt(ctx context.Context, msg messages.Message[messages.UserMessage]) {
	p.publish(ctx, events.Request{
		RunID: msg.RunID, TurnID: msg.TurnID, Message: msg.Payload, Sender: msg.Sender, Timestamp: msg.Timestamp, Meta: msg.Meta,
	})
}

func (p *publishingHook) OnAssistantChunk(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	p.publish(ctx, events.Chunk{
		RunID: msg.RunID, TurnID: msg.TurnID, Chunk: msg.Payload, Sender: msg.Sender, Timestamp: msg.Timestamp, Meta: msg.Meta,
	})
}

func (p *publishingHook) OnAssistantMessage(ctx context.Context, msg messages.Message[messages.AssistantMessage]) {
	p.publish(ctx, events.Response{
		RunID: msg.RunID, TurnID: msg.TurnID, Response: msg.Payload, Sender: msg.Sender, Timestamp: msg.Timestamp, Meta: msg.Meta,
	})
}

func (p *publishingHook) OnProgress(ctx context.Context, progress events.Progress) {
	if progress.Book == "" {
		progress.Book = p.book
	}
	if time.Time(progress.Timestamp).IsZero() {
		progress.Timestamp = strfmt.DateTime(time.Now())
	}
	p.publish(ctx, progress)
}

func (p *publishingHook) OnError(ctx context.Context, err error) {
	if ee, ok := err.(events.Error); ok { //nolint:errorlint
		p.publish(ctx, ee)
		return
	}
	p.publish(ctx, events.Error{Err: err, Timestamp: strfmt.DateTime(time.Now())})
}
