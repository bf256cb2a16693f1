// Package taskqueue tracks the agent tasks fanned out by the production
// workflow: every task has an id, a state and a result, and at most a fixed
// number of them run at the same time.
package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/bookstart/pkg/slogx"
	"github.com/casualjim/bookstart/pkg/uuidx"
	"github.com/fogfish/opts"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownTask is returned for ids the queue has never seen.
var ErrUnknownTask = errors.New("unknown task")

// State of a task.
type State string

const (
	Pending   State = "pending"
	Running   State = "running"
	Succeeded State = "succeeded"
	Failed    State = "failed"
	Canceled  State = "canceled"
)

// Done reports whether the state is final.
func (s State) Done() bool {
	return s == Succeeded || s == Failed || s == Canceled
}

// Info is a point in time view of a task.
type Info struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Agent       string    `json:"agent,omitempty"`
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Func is the work of a task. It should return promptly once ctx is done.
type Func func(ctx context.Context) error

type task struct {
	mu     sync.Mutex
	info   Info
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *task) snapshot() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
}

func (t *task) finish(state State, err error) {
	t.mu.Lock()
	t.info.State = state
	t.info.FinishedAt = time.Now().UTC()
	t.err = err
	if err != nil {
		t.info.Error = err.Error()
	}
	t.mu.Unlock()
	close(t.done)
}

// WithLimit caps the number of concurrently running tasks. Values below 1
// mean 1.
var WithLimit = opts.ForName[Queue, int]("limit")

// Queue runs tasks with bounded concurrency. A failing task never affects its
// siblings.
type Queue struct {
	limit int
	group errgroup.Group
	tasks *haxmap.Map[string, *task]

	mu    sync.Mutex
	order []string
}

// New creates a queue. The default limit is 2.
func New(options ...opts.Option[Queue]) *Queue {
	q := &Queue{limit: 2, tasks: haxmap.New[string, *task]()}
	if err := opts.Apply(q, options); err != nil {
		panic(fmt.Errorf("invalid task queue options: %w", err))
	}
	q.limit = max(q.limit, 1)
	q.group.SetLimit(q.limit)
	return q
}

// Limit is the maximum number of tasks running at once.
func (q *Queue) Limit() int { return q.limit }

// Submit registers a pending task and starts it once a slot frees up. Submit
// blocks while all slots are busy. The task's context derives from ctx;
// canceling ctx cancels the task.
func (q *Queue) Submit(ctx context.Context, name, agent string, fn Func) string {
	tctx, cancel := context.WithCancel(ctx)
	t := &task{
		info: Info{
			ID:          uuidx.NewString(),
			Name:        name,
			Agent:       agent,
			State:       Pending,
			SubmittedAt: time.Now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	q.tasks.Set(t.info.ID, t)
	q.mu.Lock()
	q.order = append(q.order, t.info.ID)
	q.mu.Unlock()

	q.group.Go(func() error {
		q.run(tctx, t, fn)
		return nil
	})
	return t.info.ID
}

func (q *Queue) run(ctx context.Context, t *task, fn Func) {
	defer t.cancel()

	t.mu.Lock()
	if ctx.Err() != nil {
		t.mu.Unlock()
		t.finish(Canceled, ctx.Err())
		return
	}
	t.info.State = Running
	t.info.StartedAt = time.Now().UTC()
	name := t.info.Name
	t.mu.Unlock()

	log := slog.With(slogx.LoggerName("taskqueue"), slog.String("task", name))
	log.DebugContext(ctx, "task started")

	err := runSafely(ctx, fn)
	switch {
	case err == nil:
		t.finish(Succeeded, nil)
		log.DebugContext(ctx, "task succeeded")
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		t.finish(Canceled, err)
		log.InfoContext(ctx, "task canceled")
	default:
		t.finish(Failed, err)
		log.WarnContext(ctx, "task failed", slogx.Error(err))
	}
}

func runSafely(ctx context.Context, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx)
}

// Get returns the current view of a task.
func (q *Queue) Get(id string) (Info, error) {
	t, ok := q.tasks.Get(id)
	if !ok {
		return Info{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return t.snapshot(), nil
}

// List returns every task in submission order.
func (q *Queue) List() []Info {
	q.mu.Lock()
	ids := append([]string(nil), q.order...)
	q.mu.Unlock()

	out := make([]Info, 0, len(ids))
	for _, id := range ids {
		if t, ok := q.tasks.Get(id); ok {
			out = append(out, t.snapshot())
		}
	}
	return out
}

// Snapshot is List under the name used for persistence.
func (q *Queue) Snapshot() []Info {
	return q.List()
}

// Cancel cancels a pending or running task. Canceling a finished task is a
// no-op.
func (q *Queue) Cancel(id string) error {
	t, ok := q.tasks.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	t.cancel()
	return nil
}

// Done returns a channel that is closed when the task has finished.
func (q *Queue) Done(id string) (<-chan struct{}, error) {
	t, ok := q.tasks.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return t.done, nil
}

// Wait blocks until every submitted task has finished and returns the errors
// of the failed and canceled tasks joined in submission order.
func (q *Queue) Wait() error {
	_ = q.group.Wait()

	q.mu.Lock()
	ids := append([]string(nil), q.order...)
	q.mu.Unlock()

	var errs []error
	for _, id := range ids {
		t, ok := q.tasks.Get(id)
		if !ok {
			continue
		}
		t.mu.Lock()
		if t.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.info.Name, t.err))
		}
		t.mu.Unlock()
	}
	return errors.Join(errs...)
}
