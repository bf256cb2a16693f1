package broker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/pkg/slogx"
	"github.com/casualjim/bookstart/pkg/uuidx"
	"github.com/nats-io/nats.go"
	"github.com/tidwall/gjson"
)

const (
	// EventTypeHeader carries the event type tag ("progress", "chunk", ...)
	// so subscribers can filter without decoding the payload.
	EventTypeHeader = "Bookstart-Event"
	// AllBooks as a topic id subscribes to every book under the prefix.
	AllBooks = "*"
)

// Subject is the NATS subject the events of book are published on.
func Subject(prefix, book string) string {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		return book
	}
	return prefix + "." + book
}

type natsBroker struct {
	client *nats.Conn
	prefix string
	topics *haxmap.Map[string, *natsTopic]
}

// NATS maps a topic id, usually a book id, onto the subject
// "<prefix>.<id>". An empty prefix uses the id as the subject.
func NATS(client *nats.Conn, prefix string) *natsBroker {
	return &natsBroker{
		client: client,
		prefix: prefix,
		topics: haxmap.New[string, *natsTopic](),
	}
}

func (b *natsBroker) Topic(_ context.Context, id string) Topic {
	top, _ := b.topics.GetOrCompute(id, func() *natsTopic {
		return &natsTopic{
			subject: Subject(b.prefix, id),
			client:  b.client,
		}
	})
	return top
}

type natsTopic struct {
	client  *nats.Conn
	subject string
}

func (t *natsTopic) Publish(_ context.Context, event events.Event) error {
	if strings.ContainsAny(t.subject, "*>") {
		return fmt.Errorf("can't publish on wildcard subject %q", t.subject)
	}
	data, err := events.ToJSON(event)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(t.subject)
	msg.Header.Set(EventTypeHeader, gjson.GetBytes(data, "type").String())
	msg.Data = data
	return t.client.PublishMsg(msg)
}

func (t *natsTopic) Subscribe(ctx context.Context, hook events.Hook) (Subscription, error) {
	if hook == nil {
		return nil, errors.New("hook is required")
	}
	ch := make(chan events.Event, 50)
	nsub, err := t.client.Subscribe(t.subject, func(msg *nats.Msg) {
		event, err := events.FromJSON(msg.Data)
		if err != nil {
			slog.Error("failed to unmarshal event",
				slogx.Error(err),
				slog.String("subject", msg.Subject),
				slog.String("type", msg.Header.Get(EventTypeHeader)),
			)
			return
		}
		select {
		case ch <- event:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return nil, err
	}
	nsub.SetClosedHandler(func(_ string) { close(ch) })

	go forwardToHook(ctx, ch, hook)
	go func() {
		<-ctx.Done()
		_ = nsub.Unsubscribe()
	}()
	return &natsSubscription{
		id:  uuidx.NewString(),
		sub: nsub,
	}, nil
}

type natsSubscription struct {
	id  string
	sub *nats.Subscription
}

func (n *natsSubscription) ID() string {
	return n.id
}

func (n *natsSubscription) Unsubscribe() {
	if err := n.sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrBadSubscription) {
		slog.Error("failed to unsubscribe", slogx.Error(err), slog.String("subscription", n.id))
	}
}
