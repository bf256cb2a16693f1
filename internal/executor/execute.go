package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/pkg/stdx"
	"github.com/casualjim/bookstart/pkg/uuidx"
	"github.com/casualjim/bookstart/provider"
	"github.com/casualjim/bookstart/types"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

// Structured outputs accept a subset of JSON schema; these flags keep the
// reflected schema inside it.
var reflector = jsonschema.Reflector{
	AllowAdditionalProperties: false,
	DoNotReference:            true,
}

func ToJSONSchema[T any]() *jsonschema.Schema {
	var v T
	return reflector.Reflect(v)
}

// RunCommand is one agent call: the agent, the thread it reads and appends to,
// and the sampler settings for the reply.
type RunCommand struct {
	id               uuid.UUID
	Agent            api.Agent
	Thread           *shorttermmemory.Aggregator
	StructuredOutput *provider.StructuredOutput
	Stream           bool
	ContextVariables types.ContextVars
	Hook             events.Hook
	Temperature      *float64
	MaxTokens        int
}

// NewRunCommand returns a command with a fresh run id, or every missing input
// joined into one error.
func NewRunCommand(agent api.Agent, thread *shorttermmemory.Aggregator, hook events.Hook) (RunCommand, error) {
	cmd := RunCommand{id: uuidx.New(), Agent: agent, Thread: thread, Hook: hook}
	if err := cmd.Validate(); err != nil {
		return RunCommand{}, err
	}
	return cmd, nil
}

func (r *RunCommand) Validate() error {
	var errs []error
	if r.Agent == nil {
		errs = append(errs, errors.New("agent is required"))
	}
	if r.Thread == nil {
		errs = append(errs, errors.New("thread is required"))
	}
	if r.Hook == nil {
		errs = append(errs, errors.New("hook is required"))
	}
	return errors.Join(errs...)
}

func (r *RunCommand) ID() uuid.UUID { return r.id }

func (r RunCommand) WithStream(stream bool) RunCommand {
	r.Stream = stream
	return r
}

func (r RunCommand) WithContextVariables(vars types.ContextVars) RunCommand {
	r.ContextVariables = vars
	return r
}

func (r RunCommand) WithStructuredOutput(output *provider.StructuredOutput) RunCommand {
	r.StructuredOutput = output
	return r
}

func (r RunCommand) WithTemperature(temperature float64) RunCommand {
	r.Temperature = &temperature
	return r
}

func (r RunCommand) WithMaxTokens(maxTokens int) RunCommand {
	r.MaxTokens = maxTokens
	return r
}

// DefaultUnmarshal decodes a reply into T: strings are taken verbatim,
// gjson.Result is parsed lazily and everything else is JSON decoded.
func DefaultUnmarshal[T any]() func([]byte) (T, error) {
	var t T
	_, isGjsonResult := any(t).(gjson.Result)
	isString := reflect.TypeFor[T]().Kind() == reflect.String

	switch {
	case isGjsonResult:
		return func(data []byte) (T, error) {
			return any(gjson.ParseBytes(data)).(T), nil
		}
	case isString:
		return func(data []byte) (T, error) {
			return reflect.ValueOf(string(data)).Convert(reflect.TypeFor[T]()).Interface().(T), nil
		}
	default:
		return func(data []byte) (T, error) {
			var v T
			if err := json.Unmarshal(stripCodeFence(data), &v); err != nil {
				return v, fmt.Errorf("decode %T reply: %w", v, err)
			}
			return v, nil
		}
	}
}

// stripCodeFence cuts a JSON document out of surrounding prose or a ```json
// fence, which small local models like to add to structured replies.
func stripCodeFence(data []byte) []byte {
	if gjson.ValidBytes(data) {
		return data
	}
	text := string(data)
	start := strings.IndexAny(text, "{[")
	end := strings.LastIndexAny(text, "}]")
	if start < 0 || end < start {
		return data
	}
	return []byte(text[start : end+1])
}

// Promise receives the outcome of a run. Only the first call counts.
type Promise interface {
	Complete(string)
	Error(error)
}

// Future hands the decoded outcome of a run to any number of readers.
type Future[T any] interface {
	Get() (T, error)
}

type CompletableFuture[T any] interface {
	Future[T]
	Promise
}

type future[T any] struct {
	settle sync.Once
	done   chan struct{}
	raw    string
	err    error
	decode func() (T, error)
}

// NewFuture returns a future that decodes the completed reply with unmarshal
// the first time Get is called.
func NewFuture[T any](unmarshal func([]byte) (T, error)) CompletableFuture[T] {
	f := &future[T]{done: make(chan struct{})}
	f.decode = sync.OnceValues(func() (T, error) {
		if f.err != nil {
			return stdx.Zero[T](), f.err
		}
		return unmarshal([]byte(f.raw))
	})
	return f
}

// Get blocks until the promise is settled.
func (f *future[T]) Get() (T, error) {
	<-f.done
	return f.decode()
}

func (f *future[T]) Complete(data string) {
	f.settle.Do(func() {
		f.raw = data
		close(f.done)
	})
}

func (f *future[T]) Error(err error) {
	f.settle.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Executor runs commands and settles their promise.
type Executor interface {
	Run(context.Context, RunCommand, Promise) error
}
