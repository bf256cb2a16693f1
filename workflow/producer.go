package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/bookstart"
	"github.com/casualjim/bookstart/agent"
	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/internal/config"
	"github.com/casualjim/bookstart/internal/executor"
	"github.com/casualjim/bookstart/internal/retry"
	"github.com/casualjim/bookstart/pkg/slogx"
	"github.com/casualjim/bookstart/project"
	"github.com/casualjim/bookstart/types"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
)

// ErrShortOutline is returned when the outliner keeps producing fewer
// chapters than the book asks for.
var ErrShortOutline = errors.New("outline has fewer chapters than requested")

var (
	// WithHook observes agent calls and progress. Defaults to events.LoggingHook.
	WithHook = opts.ForName[Producer, events.Hook]("hook")
	// WithExecutor replaces the executor built from the project settings.
	WithExecutor = opts.ForName[Producer, executor.Executor]("executor")
	// Streaming passes chunks to the hook while chapters are written.
	Streaming = opts.ForName[Producer, bool]("stream")
	// WithClock replaces time.Now for timestamps.
	WithClock = opts.ForName[Producer, func() time.Time]("now")
)

// Producer runs the production stages for the book of one project.
type Producer struct {
	project  *project.Project
	team     agent.Team
	settings config.Config
	hook     events.Hook
	executor executor.Executor
	stream   bool
	now      func() time.Time
}

// New creates a producer for p using the agents of team.
func New(p *project.Project, team agent.Team, options ...opts.Option[Producer]) (*Producer, error) {
	if p == nil {
		return nil, errors.New("project is required")
	}
	if team.Outliner == nil || team.Writer == nil || team.Editor == nil || team.Researcher == nil {
		return nil, errors.New("every agent role is required")
	}
	pr := &Producer{
		project:  p,
		team:     team,
		settings: p.Settings(),
	}
	if err := opts.Apply(pr, options); err != nil {
		return nil, err
	}
	if pr.hook == nil {
		pr.hook = events.LoggingHook()
	}
	if pr.now == nil {
		pr.now = time.Now
	}
	if pr.executor == nil {
		pr.executor = executor.NewLocal(
			executor.WithRetryPolicy(pr.settings.Retry),
			executor.WithBreaker(retry.NewBreaker(retry.DefaultBreakerSettings(pr.settings.ModelRef()))),
		)
	}
	return pr, nil
}

// Project is the project the producer writes to.
func (pr *Producer) Project() *project.Project { return pr.project }

// Settings are the workflow settings in effect.
func (pr *Producer) Settings() config.Workflow { return pr.settings.Workflow }

func (pr *Producer) progress(ctx context.Context, b *book.Book, stage events.Stage, chapter int, detail string) {
	pr.hook.OnProgress(ctx, events.Progress{
		Book:      b.ID,
		Stage:     stage,
		Chapter:   chapter,
		Detail:    detail,
		Timestamp: strfmt.DateTime(pr.now()),
	})
}

func (pr *Producer) contextVars(b *book.Book) types.ContextVars {
	return types.ContextVars{
		"book":          *b,
		"approve_score": pr.settings.Workflow.ApproveScore,
	}
}

func (pr *Producer) callOptions(b *book.Book, extra ...opts.Option[bookstart.CallOptions]) []opts.Option[bookstart.CallOptions] {
	base := []opts.Option[bookstart.CallOptions]{
		bookstart.WithExecutor(pr.executor),
		bookstart.WithHook(pr.hook),
		bookstart.WithContextVars(pr.contextVars(b)),
		bookstart.Streaming(pr.stream),
		bookstart.WithTemperature(pr.settings.LLM.Temperature),
		bookstart.WithMaxTokens(pr.settings.LLM.MaxTokens),
	}
	return append(base, extra...)
}

func call[T any](ctx context.Context, pr *Producer, a api.Agent, b *book.Book, prompt string, extra ...opts.Option[bookstart.CallOptions]) (T, error) {
	return bookstart.Call[T](ctx, a, prompt, pr.callOptions(b, extra...)...)
}

func (pr *Producer) logger(b *book.Book) *slog.Logger {
	return slog.With(slogx.LoggerName("workflow"), slog.String("book", b.ID))
}

func (pr *Producer) setStatus(b *book.Book, status book.Status) error {
	updated, err := pr.project.UpdateBook(func(stored *book.Book) error {
		stored.Status = status
		stored.Touch(pr.now().UTC())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update book status: %w", err)
	}
	*b = *updated
	return nil
}

// enterEditing moves the stored book to editing when a review starts. Only
// book.json changes: chapter tasks share b, so it is left alone.
func (pr *Producer) enterEditing() error {
	_, err := pr.project.UpdateBook(func(stored *book.Book) error {
		if stored.Status == book.StatusEditing {
			return nil
		}
		stored.Status = book.StatusEditing
		stored.Touch(pr.now().UTC())
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update book status: %w", err)
	}
	return nil
}
