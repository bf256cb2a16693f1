package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/casualjim/bookstart/agent"
	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/internal/broker"
	"github.com/casualjim/bookstart/internal/console"
	"github.com/casualjim/bookstart/internal/executor"
	"github.com/casualjim/bookstart/internal/logging"
	"github.com/casualjim/bookstart/internal/retry"
	"github.com/casualjim/bookstart/pkg/natsx"
	"github.com/casualjim/bookstart/pkg/slogx"
	"github.com/casualjim/bookstart/project"
	"github.com/casualjim/bookstart/provider"
	"github.com/casualjim/bookstart/provider/models"
	"github.com/casualjim/bookstart/workflow"
	"github.com/fogfish/opts"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

// app holds the global flags and builds what the commands need.
type app struct {
	projectDir string
	logLevel   string
	stream     bool
	debug      bool

	out    io.Writer
	errOut io.Writer
}

func (a *app) setupLogging(*cobra.Command, []string) error {
	_, err := logging.Setup(a.errOut, a.logLevel, true)
	return err
}

func (a *app) open() (*project.Project, error) {
	return project.Open(a.projectDir)
}

func (a *app) openBook() (*project.Project, *book.Book, error) {
	p, err := a.open()
	if err != nil {
		return nil, nil, err
	}
	b, err := p.LoadBook()
	if errors.Is(err, project.ErrNotFound) {
		return nil, nil, fmt.Errorf("no book in %s yet, run `bookstart book create` first", p.Root())
	}
	if err != nil {
		return nil, nil, err
	}
	return p, b, nil
}

func (a *app) model(p *project.Project) (api.Model, error) {
	s := p.Settings()
	return models.Resolve(s.ModelRef(), models.Settings{
		DefaultProvider: s.LLM.Provider,
		BaseURL:         s.LLM.BaseURL,
		OllamaHost:      s.LLM.OllamaHost,
		OpenAIAPIKey:    s.LLM.OpenAIAPIKey,
		AnthropicAPIKey: s.LLM.AnthropicAPIKey,
	})
}

func (a *app) modelLister(p *project.Project) provider.ModelLister {
	m, err := a.model(p)
	if err != nil {
		return nil
	}
	lister, _ := m.Provider().(provider.ModelLister)
	return lister
}

// hook prints to the terminal and, when a NATS url is configured, publishes
// every event on the book's subject. The returned func releases the
// connection.
func (a *app) hook(ctx context.Context, p *project.Project, b *book.Book) (events.Hook, func()) {
	printer := console.NewPrinter(a.out, a.stream)
	url := p.Settings().Broker.NATSURL
	if url == "" {
		return printer, func() {}
	}

	conn, err := natsx.NewClient(url, nats.Timeout(2*time.Second))
	if err != nil {
		slog.WarnContext(ctx, "progress events won't be published", slog.String("nats_url", url), slogx.Error(err))
		return printer, func() {}
	}
	topic := broker.NATS(conn, p.Settings().Broker.SubjectPrefix).Topic(ctx, b.ID)
	return events.NewCompositeHook(printer, broker.PublishingHook(topic, b.ID)), func() {
		if err := conn.Drain(); err != nil {
			conn.Close()
		}
	}
}

// producer builds the production workflow for the project's book. With
// singleAttempt set, retries are left to the caller (the Temporal worker).
func (a *app) producer(ctx context.Context, p *project.Project, b *book.Book, singleAttempt bool) (*workflow.Producer, func(), error) {
	model, err := a.model(p)
	if err != nil {
		return nil, nil, err
	}
	hook, release := a.hook(ctx, p, b)

	options := []opts.Option[workflow.Producer]{
		workflow.WithHook(hook),
		workflow.Streaming(a.stream),
	}
	if singleAttempt {
		policy := p.Settings().Retry
		policy.MaxAttempts = 1
		options = append(options, workflow.WithExecutor(executor.NewLocal(
			executor.WithRetryPolicy(policy),
			executor.WithBreaker(retry.NewBreaker(retry.DefaultBreakerSettings(model.Name()))),
		)))
	}
	pr, err := workflow.New(p, agent.NewTeam(model), options...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return pr, release, nil
}

func (a *app) dump(values ...any) {
	if a.debug {
		console.Dump(a.errOut, values...)
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func defaultLogLevel() string {
	if lvl := strings.TrimSpace(os.Getenv("BOOKSTART_LOG_LEVEL")); lvl != "" {
		return lvl
	}
	return "warn"
}
