package tool

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/internal/config"
	"github.com/casualjim/bookstart/project"
	"github.com/casualjim/bookstart/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(context.Context, Env, Args) (string, error) { return "ok", nil }

func TestNew(t *testing.T) {
	def, err := New(noop, Name("echo"), Description("says ok"), Parameter("b", "second"), Parameter("a", "first"))
	require.NoError(t, err)
	assert.Equal(t, "echo", def.Name)

	schema := def.Schema()
	assert.Equal(t, "object", schema.Type)
	keys := []string{}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	assert.Equal(t, []string{"b", "a"}, keys, "declaration order")

	_, err = New(nil, Name("x"))
	require.Error(t, err)
	_, err = New(noop)
	require.Error(t, err)
	assert.Panics(t, func() { Must(noop) })
}

func TestParseArgs(t *testing.T) {
	args, err := ParseArgs([]string{"Chapter=3", "title=a=b", "empty="})
	require.NoError(t, err)
	assert.Equal(t, Args{"chapter": "3", "title": "a=b", "empty": ""}, args)

	n, err := args.Int("chapter", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = args.Int("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	_, err = args.Int("title", 0)
	require.Error(t, err)

	_, err = ParseArgs([]string{"novalue"})
	require.Error(t, err)
	_, err = ParseArgs([]string{"=x"})
	require.Error(t, err)
}

func TestManagerOrderAndLookup(t *testing.T) {
	m := NewManager()
	names := []string{}
	for _, def := range m.List() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"word_count", "outline", "chapters", "export", "ollama_models"}, names)

	require.NoError(t, m.Register(Must(noop, Name("echo"))))
	require.Error(t, m.Register(Must(noop, Name("echo"))))
	assert.Equal(t, "echo", m.List()[5].Name)

	_, err := m.Get("nope")
	require.ErrorIs(t, err, ErrUnknownTool)
	_, err = m.Run(context.Background(), Env{}, "nope", nil)
	require.ErrorIs(t, err, ErrUnknownTool)

	_, err = m.Run(context.Background(), Env{}, "echo", Args{"stray": "1"})
	require.Error(t, err)
	out, err := m.Run(context.Background(), Env{}, "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func seededProject(t *testing.T) *project.Project {
	t.Helper()
	p, err := project.Init(t.TempDir(), config.Default())
	require.NoError(t, err)
	b := &book.Book{
		ID: "0192f0c0-0000-7000-8000-0000000000aa", Title: "Quiet Engines", Theme: "trains at night",
		Language: "English", ChapterCount: 2, WordsPerChapter: 100, Status: book.StatusWriting,
	}
	b.Touch(time.Now().UTC())
	require.NoError(t, p.SaveBook(b))
	require.NoError(t, p.SaveOutline(&book.Outline{Title: "Quiet Engines", Chapters: []book.OutlineEntry{{Number: 1, Title: "Depot"}, {Number: 2, Title: "Signal"}}}))
	c := &book.Chapter{Number: 1, Title: "Depot", Revision: 2, Status: book.ChapterRevised}
	c.SetContent("one two three four")
	require.NoError(t, p.SaveChapter(c))
	return p
}

func TestBuiltins(t *testing.T) {
	p := seededProject(t)
	m := NewManager()
	ctx := context.Background()
	env := Env{Project: p}

	out, err := m.Run(ctx, env, "word_count", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "total")
	assert.Regexp(t, `1\s+4\s+100`, out)

	out, err = m.Run(ctx, env, "outline", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "## 2. Signal")

	out, err = m.Run(ctx, env, "chapters", Args{"status": "revised"})
	require.NoError(t, err)
	assert.Contains(t, out, "Depot")
	out, err = m.Run(ctx, env, "chapters", Args{"status": "failed"})
	require.NoError(t, err)
	assert.NotContains(t, out, "Depot")

	out, err = m.Run(ctx, env, "export", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "missing chapters: [2]")
	_, err = os.Stat(p.Path(project.ExportsDir, "quiet-engines.md"))
	require.NoError(t, err)

	_, err = m.Run(ctx, Env{}, "outline", nil)
	require.Error(t, err)
}

type fakeLister struct {
	models []provider.ModelInfo
	err    error
}

func (f fakeLister) ListModels(context.Context) ([]provider.ModelInfo, error) { return f.models, f.err }

func TestOllamaModels(t *testing.T) {
	m := NewManager()
	out, err := m.Run(context.Background(), Env{Models: fakeLister{models: []provider.ModelInfo{{Name: "llama3:latest", Family: "llama", Size: 4 << 30}}}}, "ollama_models", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "llama3:latest\tllama\t4096 MB"))

	_, err = m.Run(context.Background(), Env{Models: fakeLister{err: errors.New("daemon down")}}, "ollama_models", nil)
	require.EqualError(t, err, "daemon down")

	_, err = m.Run(context.Background(), Env{}, "ollama_models", nil)
	require.Error(t, err)
}
