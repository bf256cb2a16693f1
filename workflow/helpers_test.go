package workflow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/bookstart/agent"
	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/internal/config"
	"github.com/casualjim/bookstart/internal/executor"
	"github.com/casualjim/bookstart/internal/retry"
	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/messages"
	"github.com/casualjim/bookstart/project"
	"github.com/casualjim/bookstart/provider"
	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/require"
)

// bookProvider answers every agent role with a canned reply built by respond.
type bookProvider struct {
	respond func(role agent.Role, prompt string) (string, error)

	mu      sync.Mutex
	prompts map[agent.Role][]string
}

func newBookProvider(respond func(role agent.Role, prompt string) (string, error)) *bookProvider {
	return &bookProvider{respond: respond, prompts: make(map[agent.Role][]string)}
}

func roleOf(instructions string) agent.Role {
	switch {
	case strings.Contains(instructions, "book architect"):
		return agent.RoleOutliner
	case strings.Contains(instructions, "demanding editor"):
		return agent.RoleEditor
	case strings.Contains(instructions, "meticulous researcher"):
		return agent.RoleResearcher
	default:
		return agent.RoleWriter
	}
}

func (p *bookProvider) ChatCompletion(_ context.Context, params provider.CompletionParams) (<-chan provider.StreamEvent, error) {
	role := roleOf(params.Instructions)
	last, _ := params.Thread.Last()
	prompt := last.Text()

	p.mu.Lock()
	p.prompts[role] = append(p.prompts[role], prompt)
	p.mu.Unlock()

	text, err := p.respond(role, prompt)
	if err != nil {
		return nil, err
	}
	ch := make(chan provider.StreamEvent, 1)
	ch <- provider.Response{
		RunID:      params.RunID,
		TurnID:     params.Thread.ID(),
		Checkpoint: shorttermmemory.NewCheckpoint(params.Thread.ID(), shorttermmemory.Usage{Requests: 1}),
		Response:   messages.AssistantMessage{Content: text},
		Timestamp:  strfmt.DateTime(time.Now()),
	}
	close(ch)
	return ch, nil
}

func (p *bookProvider) Prompts(role agent.Role) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.prompts[role]...)
}

type fakeModel struct{ prov provider.Provider }

func (m fakeModel) Name() string                { return "fake" }
func (m fakeModel) Provider() provider.Provider { return m.prov }

func testTeam(t *testing.T, prov provider.Provider) agent.Team {
	t.Helper()
	m := fakeModel{prov: prov}
	var team agent.Team
	var err error
	team.Outliner, err = agent.ForRole(agent.RoleOutliner, m)
	require.NoError(t, err)
	team.Writer, err = agent.ForRole(agent.RoleWriter, m)
	require.NoError(t, err)
	team.Editor, err = agent.ForRole(agent.RoleEditor, m)
	require.NoError(t, err)
	team.Researcher, err = agent.ForRole(agent.RoleResearcher, m)
	require.NoError(t, err)
	return team
}

type progressHook struct {
	mu       sync.Mutex
	progress []events.Progress
}

func (h *progressHook) OnUserPrompt(context.Context, messages.Message[messages.UserMessage]) {}
func (h *progressHook) OnAssistantChunk(context.Context, messages.Message[messages.AssistantMessage]) {
}
func (h *progressHook) OnAssistantMessage(context.Context, messages.Message[messages.AssistantMessage]) {
}
func (h *progressHook) OnError(context.Context, error) {}

func (h *progressHook) OnProgress(_ context.Context, p events.Progress) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.progress = append(h.progress, p)
}

func (h *progressHook) Stages(chapter int) []events.Stage {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []events.Stage
	for _, p := range h.progress {
		if p.Chapter == chapter {
			out = append(out, p.Stage)
		}
	}
	return out
}

func testBook(chapters, words int) *book.Book {
	b := &book.Book{
		ID:              "0192f0c0-0000-7000-8000-00000000000a",
		Title:           "Tides of Glass",
		Theme:           "a glassblower's town that floods every spring",
		Language:        "English",
		ChapterCount:    chapters,
		WordsPerChapter: words,
		Status:          book.StatusDraft,
	}
	b.Touch(time.Now().UTC())
	return b
}

func setup(t *testing.T, b *book.Book, cfg config.Config, prov provider.Provider) (*Producer, *project.Project, *progressHook) {
	t.Helper()
	p, err := project.Init(t.TempDir(), cfg)
	require.NoError(t, err)
	require.NoError(t, p.SaveBook(b))

	hook := &progressHook{}
	exec := executor.NewLocal(
		executor.WithRetryPolicy(retry.Policy{MaxAttempts: 1, BackoffCoefficient: 1}),
		executor.WithBreaker(retry.NewBreaker(retry.BreakerSettings{Name: t.Name(), ConsecutiveFailures: 100, OpenTimeout: time.Minute})),
	)
	pr, err := New(p, testTeam(t, prov), WithHook(hook), WithExecutor(exec))
	require.NoError(t, err)
	return pr, p, hook
}

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("lantern ", n))
}
