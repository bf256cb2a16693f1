package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/internal/retry"
	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/pkg/slogx"
	"github.com/casualjim/bookstart/provider"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

var _ Executor = &Local{}

// ErrEmptyReply is returned when a provider finishes a turn without any text.
var ErrEmptyReply = errors.New("model returned an empty reply")

type Local struct {
	policy  retry.Policy
	breaker *gobreaker.CircuitBreaker
}

var (
	// WithRetryPolicy replaces the default policy for provider attempts.
	WithRetryPolicy = opts.ForName[Local, retry.Policy]("policy")
	// WithBreaker shares a circuit breaker between executors.
	WithBreaker = opts.ForName[Local, *gobreaker.CircuitBreaker]("breaker")
)

func NewLocal(options ...opts.Option[Local]) *Local {
	l := &Local{
		policy: retry.DefaultPolicy(),
	}
	if err := opts.Apply(l, options); err != nil {
		panic(err)
	}
	if l.breaker == nil {
		l.breaker = retry.NewBreaker(retry.DefaultBreakerSettings("provider"))
	}
	return l
}

func wrapErr(runID, turnID uuid.UUID, sender string, err error) (events.Error, bool) {
	if err == nil {
		return events.Error{}, false
	}
	if pErr, ok := err.(events.Error); ok { //nolint: errorlint
		return pErr, true
	}
	return events.Error{
		RunID:     runID,
		TurnID:    turnID,
		Sender:    sender,
		Err:       err,
		Timestamp: strfmt.DateTime(time.Now()),
	}, true
}

func (l *Local) Run(ctx context.Context, command RunCommand, promise Promise) error {
	if err := command.Validate(); err != nil {
		promise.Error(err)
		return err
	}

	agent := command.Agent
	log := slog.With(slogx.Agent(agent.Name()), slog.String("run_id", command.ID().String()))

	model := agent.Model()
	if model == nil {
		return l.fail(ctx, &command, promise, fmt.Errorf("agent model cannot be nil"))
	}
	prov := model.Provider()
	if prov == nil {
		return l.fail(ctx, &command, promise, fmt.Errorf("model provider cannot be nil"))
	}

	instructions, err := agent.RenderInstructions(command.ContextVariables.Clone())
	if err != nil {
		return l.fail(ctx, &command, promise, fmt.Errorf("failed to render instructions: %w", err))
	}

	log.DebugContext(ctx, "running agent", slog.String("model", model.Name()), slog.Bool("stream", command.Stream))

	var (
		thread *shorttermmemory.Aggregator
		reply  messages.Message[messages.AssistantMessage]
	)
	err = retry.Do(ctx, l.policy, func(ctx context.Context, _ int) error {
		_, err := l.breaker.Execute(func() (any, error) {
			t, msg, err := l.attempt(ctx, &command, prov, model, instructions)
			if err != nil {
				return nil, err
			}
			thread, reply = t, msg
			return nil, nil
		})
		if retry.IsOpen(err) {
			return retry.Permanent(fmt.Errorf("provider unavailable: %w", err))
		}
		return err
	})
	if err != nil {
		return l.fail(ctx, &command, promise, err)
	}

	command.Thread.Join(thread)
	command.Hook.OnAssistantMessage(ctx, reply)
	usage := command.Thread.Usage()
	log.DebugContext(ctx, "agent replied",
		slog.Int("chars", len(reply.Payload.Content)),
		slog.Int64("total_tokens", usage.TotalTokens),
	)
	promise.Complete(reply.Payload.Content)
	return nil
}

// attempt runs one provider call on a fork of the command's thread. The fork
// is only joined back when the whole run succeeds.
func (l *Local) attempt(ctx context.Context, command *RunCommand, prov provider.Provider, model api.Model, instructions string) (*shorttermmemory.Aggregator, messages.Message[messages.AssistantMessage], error) {
	var zero messages.Message[messages.AssistantMessage]
	thread := command.Thread.Fork()

	stream, err := prov.ChatCompletion(ctx, provider.CompletionParams{
		RunID:          command.ID(),
		Instructions:   instructions,
		Thread:         thread,
		Stream:         command.Stream,
		ResponseSchema: command.StructuredOutput,
		Model:          model,
		Temperature:    command.Temperature,
		MaxTokens:      command.MaxTokens,
	})
	if err != nil {
		return nil, zero, fmt.Errorf("failed to get chat completion: %w", err)
	}

	var reply *messages.Message[messages.AssistantMessage]
	for {
		select {
		case event, hasMore := <-stream:
			if !hasMore {
				if reply == nil {
					return nil, zero, errors.New("stream closed without a response")
				}
				if reply.Payload.Refusal != "" {
					return nil, zero, retry.Permanent(fmt.Errorf("model refused: %s", reply.Payload.Refusal))
				}
				if reply.Payload.Content == "" {
					return nil, zero, ErrEmptyReply
				}
				return thread, *reply, nil
			}

			switch event := event.(type) {
			case provider.Delim:
			case provider.Chunk:
				command.Hook.OnAssistantChunk(ctx, messages.Message[messages.AssistantMessage]{
					RunID:     event.RunID,
					TurnID:    event.TurnID,
					Payload:   event.Chunk,
					Sender:    command.Agent.Name(),
					Timestamp: event.Timestamp,
					Meta:      event.Meta,
				})
			case provider.Response:
				event.Checkpoint.MergeInto(thread)
				msg := messages.Message[messages.AssistantMessage]{
					RunID:     event.RunID,
					TurnID:    event.TurnID,
					Payload:   event.Response,
					Sender:    command.Agent.Name(),
					Timestamp: event.Timestamp,
					Meta:      event.Meta,
				}
				thread.AddAssistantMessage(msg)
				reply = &msg
			case provider.Error:
				go drain(stream)
				return nil, zero, event
			default:
				go drain(stream)
				return nil, zero, fmt.Errorf("unknown event type %T", event)
			}

		case <-ctx.Done():
			go drain(stream)
			return nil, zero, ctx.Err()
		}
	}
}

func drain(stream <-chan provider.StreamEvent) {
	for range stream { //nolint:revive
	}
}

func (l *Local) fail(ctx context.Context, command *RunCommand, promise Promise, err error) error {
	ee, _ := wrapErr(command.ID(), command.Thread.ID(), command.Agent.Name(), err)
	command.Hook.OnError(ctx, ee)
	promise.Error(ee)
	return ee
}
