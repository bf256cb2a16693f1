package agent

import (
	"testing"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/provider"
	"github.com/casualjim/bookstart/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testModel struct{}

func (m *testModel) Name() string {
	return "test-model"
}

func (m *testModel) Provider() provider.Provider {
	return nil
}

func sampleBook() book.Book {
	return book.Book{
		ID:              "b1",
		Title:           "Harbour Lights",
		Theme:           "a lighthouse keeper who finds letters from the future",
		Genre:           "mystery",
		Language:        "English",
		ChapterCount:    8,
		WordsPerChapter: 1500,
		Status:          book.StatusDraft,
	}
}

func TestNewAgent(t *testing.T) {
	agent := New(Name("test"), Model(&testModel{}), Instructions("instructions"))

	assert.Equal(t, "test", agent.Name())
	assert.Equal(t, &testModel{}, agent.Model())
	assert.Equal(t, "instructions", agent.Instructions())
}

func TestNewAgentDefaultsToOllama(t *testing.T) {
	agent := New(Name("test"))
	require.NotNil(t, agent.Model())
	assert.Equal(t, DefaultModel, agent.Model().Name())
}

func TestRenderInstructions(t *testing.T) {
	t.Run("no template variables", func(t *testing.T) {
		agent := New(Name("test"), Model(&testModel{}), Instructions("simple instructions"))
		result, err := agent.RenderInstructions(types.ContextVars{})
		require.NoError(t, err)
		assert.Equal(t, "simple instructions", result)
	})

	t.Run("with template variables", func(t *testing.T) {
		agent := New(Name("test"), Model(&testModel{}), Instructions("Hello {{.Name}}"))
		result, err := agent.RenderInstructions(types.ContextVars{"Name": "World"})
		require.NoError(t, err)
		assert.Equal(t, "Hello World", result)
	})

	t.Run("missing variable", func(t *testing.T) {
		agent := New(Name("test"), Model(&testModel{}), Instructions("Hello {{.Name}}"))
		_, err := agent.RenderInstructions(nil)
		require.Error(t, err)
	})

	t.Run("invalid template", func(t *testing.T) {
		agent := New(Name("test"), Model(&testModel{}), Instructions("Hello {{.Name"))
		_, err := agent.RenderInstructions(types.ContextVars{"Name": "World"})
		require.Error(t, err)
	})
}

func TestRoleInstructions(t *testing.T) {
	b := sampleBook()

	outliner, err := ForRole(RoleOutliner, &testModel{})
	require.NoError(t, err)
	text, err := outliner.RenderInstructions(types.ContextVars{"book": b})
	require.NoError(t, err)
	assert.Contains(t, text, `"Harbour Lights"`)
	assert.Contains(t, text, "exactly 8 chapters")
	assert.Contains(t, text, "Genre: mystery")
	assert.NotContains(t, text, "Audience:")

	writer, err := ForRole(RoleWriter, &testModel{})
	require.NoError(t, err)
	text, err = writer.RenderInstructions(types.ContextVars{"book": b})
	require.NoError(t, err)
	assert.Contains(t, text, "about 1500 words")

	editor, err := ForRole(RoleEditor, &testModel{})
	require.NoError(t, err)
	_, err = editor.RenderInstructions(types.ContextVars{"book": b})
	require.Error(t, err, "approve_score is required")
	text, err = editor.RenderInstructions(types.ContextVars{"book": b, "approve_score": 7})
	require.NoError(t, err)
	assert.Contains(t, text, "score 7 or more")

	researcher, err := ForRole(RoleResearcher, &testModel{})
	require.NoError(t, err)
	text, err = researcher.RenderInstructions(types.ContextVars{"book": b})
	require.NoError(t, err)
	assert.Contains(t, text, "Keywords:")

	_, err = ForRole(Role("critic"), &testModel{})
	require.Error(t, err)
}

func TestNewTeamRegistersAgents(t *testing.T) {
	t.Cleanup(func() {
		for _, r := range Roles() {
			registered.Del(string(r))
		}
	})

	team := NewTeam(&testModel{})
	assert.Equal(t, "outliner", team.Outliner.Name())
	assert.Equal(t, "writer", team.Writer.Name())
	assert.Equal(t, "editor", team.Editor.Name())
	assert.Equal(t, "researcher", team.Researcher.Name())

	got, ok := Get("writer")
	require.True(t, ok)
	assert.Same(t, team.Writer, got)
	assert.Equal(t, []string{"editor", "outliner", "researcher", "writer"}, Names())
}
