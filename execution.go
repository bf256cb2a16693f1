package bookstart

import (
	"context"
	"reflect"
	"strings"
	"sync"

	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/internal/executor"
	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/provider"
	"github.com/casualjim/bookstart/types"
	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

type (
	Agent = api.Agent
	Model = api.Model
)

// CallOptions configure a single Call.
type CallOptions struct {
	executor       executor.Executor
	hook           events.Hook
	thread         *shorttermmemory.Aggregator
	responseSchema *provider.StructuredOutput
	contextVars    types.ContextVars
	stream         bool
	temperature    *float64
	maxTokens      int
}

var (
	// WithContextVars sets the variables the agent's instructions are rendered with.
	WithContextVars = opts.ForName[CallOptions, types.ContextVars]("contextVars")

	// Streaming asks the provider for incremental chunks, which are passed to
	// the hook as they arrive.
	Streaming = opts.ForName[CallOptions, bool]("stream")

	// WithHook observes the call. Defaults to events.LoggingHook.
	WithHook = opts.ForName[CallOptions, events.Hook]("hook")

	// WithThread continues an existing conversation; the prompt and the reply
	// are appended to it.
	WithThread = opts.ForName[CallOptions, *shorttermmemory.Aggregator]("thread")

	// WithMaxTokens caps the reply length.
	WithMaxTokens = opts.ForName[CallOptions, int]("maxTokens")
)

// WithTemperature overrides the sampler temperature. Zero is a valid
// temperature and is passed on to the provider.
func WithTemperature(temperature float64) opts.Option[CallOptions] {
	return opts.Type[CallOptions](func(o *CallOptions) error {
		o.temperature = &temperature
		return nil
	})
}

// WithExecutor runs the call on exec instead of the shared local executor.
func WithExecutor(exec executor.Executor) opts.Option[CallOptions] {
	return opts.Type[CallOptions](func(o *CallOptions) error {
		o.executor = exec
		return nil
	})
}

// StructuredOutput constrains the reply to the JSON schema of T.
func StructuredOutput[T any](name, description string) opts.Option[CallOptions] {
	return opts.Type[CallOptions](func(s *CallOptions) error {
		schema := jsonSchema[T]()
		if schema != nil {
			s.responseSchema = &provider.StructuredOutput{
				Name:        name,
				Description: description,
				Schema:      schema,
			}
		}
		return nil
	})
}

// jsonSchema reflects T unless it is a string or gjson.Result.
func jsonSchema[T any]() *jsonschema.Schema {
	var t T
	_, isGjsonResult := any(t).(gjson.Result)
	isString := reflect.TypeFor[T]().Kind() == reflect.String
	if isGjsonResult || isString {
		return nil
	}
	return executor.ToJSONSchema[T]()
}

var defaultExecutor = sync.OnceValue(func() executor.Executor {
	return executor.NewLocal()
})

// Call sends prompt to agent and decodes the reply into T. Struct types get a
// structured output schema automatically when none was configured.
func Call[T any](ctx context.Context, agent api.Agent, prompt string, options ...opts.Option[CallOptions]) (T, error) {
	var zero T
	o := CallOptions{}
	if err := opts.Apply(&o, options); err != nil {
		return zero, err
	}
	if o.executor == nil {
		o.executor = defaultExecutor()
	}
	if o.hook == nil {
		o.hook = events.LoggingHook()
	}
	if o.thread == nil {
		o.thread = shorttermmemory.New()
	}
	if o.responseSchema == nil {
		if schema := jsonSchema[T](); schema != nil {
			name := strings.ToLower(reflect.TypeFor[T]().Name())
			if name == "" {
				name = "response"
			}
			o.responseSchema = &provider.StructuredOutput{Name: name, Schema: schema}
		}
	}

	cmd, err := executor.NewRunCommand(agent, o.thread, o.hook)
	if err != nil {
		return zero, err
	}
	cmd = cmd.WithContextVariables(o.contextVars).
		WithStructuredOutput(o.responseSchema).
		WithStream(o.stream).
		WithMaxTokens(o.maxTokens)
	if o.temperature != nil {
		cmd = cmd.WithTemperature(*o.temperature)
	}

	msg := messages.New().
		WithRunID(cmd.ID()).
		WithTurnID(o.thread.ID()).
		WithSender("user").
		UserPrompt(prompt)
	o.thread.AddUserPrompt(msg)
	o.hook.OnUserPrompt(ctx, msg)

	fut := executor.NewFuture(executor.DefaultUnmarshal[T]())
	if err := o.executor.Run(ctx, cmd, fut); err != nil {
		return zero, err
	}
	return fut.Get()
}
