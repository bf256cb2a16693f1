package project

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/internal/config"
	"github.com/casualjim/bookstart/internal/taskqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProject(t *testing.T) *Project {
	t.Helper()
	p, err := Init(t.TempDir(), config.Default())
	require.NoError(t, err)
	return p
}

func sampleBook() *book.Book {
	b := &book.Book{
		ID:              "0192f0c0-0000-7000-8000-000000000001",
		Title:           "The Lighthouse Keeper",
		Theme:           "a keeper who talks to ships",
		Language:        "English",
		ChapterCount:    3,
		WordsPerChapter: 500,
		Status:          book.StatusDraft,
	}
	b.Touch(time.Now().UTC())
	return b
}

func TestInitCreatesLayout(t *testing.T) {
	p := newProject(t)
	for _, dir := range Layout() {
		st, err := os.Stat(p.Path(dir))
		require.NoError(t, err, dir)
		assert.True(t, st.IsDir())
	}
	_, err := os.Stat(p.Path(config.FileName))
	require.NoError(t, err)
	assert.Equal(t, "llama3", p.Settings().LLM.Model)
}

func TestInitKeepsExistingSettings(t *testing.T) {
	dir := t.TempDir()
	custom := config.Default()
	custom.LLM.Model = "mistral"
	_, err := Init(dir, custom)
	require.NoError(t, err)

	p, err := Init(dir, config.Default())
	require.NoError(t, err)
	assert.Equal(t, "mistral", p.Settings().LLM.Model)
}

func TestOpenRequiresSettings(t *testing.T) {
	_, err := Open(t.TempDir())
	require.ErrorIs(t, err, ErrNotProject)
}

func TestBookRoundTrip(t *testing.T) {
	p := newProject(t)
	assert.False(t, p.HasBook())

	_, err := p.LoadBook()
	require.ErrorIs(t, err, ErrNotFound)

	b := sampleBook()
	require.NoError(t, p.SaveBook(b))
	assert.True(t, p.HasBook())

	got, err := p.LoadBook()
	require.NoError(t, err)
	assert.Equal(t, b.Title, got.Title)
	assert.Equal(t, b.ChapterCount, got.ChapterCount)

	invalid := sampleBook()
	invalid.ChapterCount = 0
	require.ErrorIs(t, p.SaveBook(invalid), book.ErrInvalid)
}

func TestUpdateBookIsSerialized(t *testing.T) {
	p := newProject(t)
	require.NoError(t, p.SaveBook(sampleBook()))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.UpdateBook(func(b *book.Book) error {
				b.WordsPerChapter++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	b, err := p.LoadBook()
	require.NoError(t, err)
	assert.Equal(t, 510, b.WordsPerChapter)
}

func TestOutlineRoundTrip(t *testing.T) {
	p := newProject(t)
	o := &book.Outline{
		Title:    "The Lighthouse Keeper",
		Synopsis: "A keeper and the sea.",
		Chapters: []book.OutlineEntry{
			{Number: 1, Title: "Fog", Summary: "It begins.", Keywords: []string{"fog", "night"}},
			{Number: 2, Title: "Signal", Summary: "A ship answers."},
		},
	}
	require.NoError(t, p.SaveOutline(o))

	got, err := p.LoadOutline()
	require.NoError(t, err)
	assert.Equal(t, o, got)

	md, err := os.ReadFile(p.Path(OutlineDir, "outline.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "## 2. Signal")
}

func TestChapterRoundTrip(t *testing.T) {
	p := newProject(t)
	c := &book.Chapter{Number: 2, Title: "The Storm", Revision: 1, Status: book.ChapterDrafted}
	c.SetContent("Rain hammered the glass.\n\nThe lamp held.")
	require.NoError(t, p.SaveChapter(c))

	data, err := os.ReadFile(p.Path(DraftsDir, "02-the-storm.md"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "---\nnumber: 2\n"))

	got, err := p.LoadChapter(2)
	require.NoError(t, err)
	assert.Equal(t, "The Storm", got.Title)
	assert.Equal(t, c.Content, got.Content)
	assert.Equal(t, c.WordCount, got.WordCount)
	assert.Equal(t, book.ChapterDrafted, got.Status)

	// renaming the chapter replaces the old file
	c.Title = "Squall"
	require.NoError(t, p.SaveChapter(c))
	files, err := filepath.Glob(p.Path(DraftsDir, "02-*.md"))
	require.NoError(t, err)
	assert.Equal(t, []string{p.Path(DraftsDir, "02-squall.md")}, files)

	_, err = p.LoadChapter(9)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestChaptersSorted(t *testing.T) {
	p := newProject(t)
	for _, n := range []int{3, 1, 2} {
		c := &book.Chapter{Number: n, Title: "Part", Status: book.ChapterDrafted}
		c.SetContent("words words")
		require.NoError(t, p.SaveChapter(c))
	}
	chapters, err := p.Chapters()
	require.NoError(t, err)
	require.Len(t, chapters, 3)
	for i, c := range chapters {
		assert.Equal(t, i+1, c.Number)
	}
}

func TestEditReports(t *testing.T) {
	p := newProject(t)
	require.NoError(t, p.SaveEditReport(&book.EditReport{Chapter: 1, Pass: 2, Score: 8, Approved: true}))
	require.NoError(t, p.SaveEditReport(&book.EditReport{Chapter: 1, Pass: 1, Score: 5}))
	require.NoError(t, p.SaveEditReport(&book.EditReport{Chapter: 2, Pass: 1, Score: 9}))

	_, err := os.Stat(p.Path(EditsDir, "01-pass-2.json"))
	require.NoError(t, err)

	reports, err := p.EditReports(1)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 1, reports[0].Pass)
	assert.Equal(t, 2, reports[1].Pass)
}

func TestResearch(t *testing.T) {
	p := newProject(t)
	r := &book.ResearchTopic{Topic: "Lighthouse optics", Keywords: []string{"fresnel", "lens"}, Notes: "Fresnel lenses focus light."}
	require.NoError(t, p.SaveResearch(r))
	assert.Equal(t, "lighthouse-optics", r.Slug)

	got, err := p.LoadResearch("lighthouse-optics")
	require.NoError(t, err)
	assert.Equal(t, r.Notes, got.Notes)
	assert.Equal(t, r.Keywords, got.Keywords)

	all, err := p.Research()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.Error(t, p.SaveResearch(&book.ResearchTopic{}))
}

func TestResearchKeepsDistinctTopics(t *testing.T) {
	p := newProject(t)
	for _, topic := range []string{"东京的历史", "京都の寺", "!!!", "???"} {
		require.NoError(t, p.SaveResearch(&book.ResearchTopic{Topic: topic, Notes: "notes on " + topic}))
	}

	all, err := p.Research()
	require.NoError(t, err)
	require.Len(t, all, 4)
	topics := make([]string, 0, len(all))
	for _, r := range all {
		topics = append(topics, r.Topic)
	}
	assert.ElementsMatch(t, []string{"东京的历史", "京都の寺", "!!!", "???"}, topics)

	got, err := p.LoadResearch("东京的历史")
	require.NoError(t, err)
	assert.Equal(t, "notes on 东京的历史", got.Notes)

	again := &book.ResearchTopic{Topic: "京都の寺", Notes: "revised"}
	require.NoError(t, p.SaveResearch(again))
	assert.Equal(t, "京都の寺", again.Slug)
	all, err = p.Research()
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestCollaborationFiles(t *testing.T) {
	p := newProject(t)
	users, err := p.LoadUsers()
	require.NoError(t, err)
	assert.Empty(t, users)

	require.NoError(t, p.SaveUsers([]book.User{{Name: "ada", Role: book.RoleAuthor}}))
	users, err = p.LoadUsers()
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, p.SaveComments([]book.Comment{{ID: "c1", Author: "ada", Body: "tighten"}}))
	comments, err := p.LoadComments()
	require.NoError(t, err)
	assert.Equal(t, "tighten", comments[0].Body)
}

func TestTasksSnapshot(t *testing.T) {
	p := newProject(t)
	_, err := p.LoadTasks()
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, p.SaveTasks([]taskqueue.Info{{ID: "t1", Name: "chapter 1", State: taskqueue.Succeeded}}))
	tasks, err := p.LoadTasks()
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, taskqueue.Succeeded, tasks[0].State)
}

func TestExport(t *testing.T) {
	p := newProject(t)
	path, err := p.Export("book.md", []byte("# Book\n"))
	require.NoError(t, err)
	assert.Equal(t, p.Path(ExportsDir, "book.md"), path)
}

func TestFrontMatter(t *testing.T) {
	var meta struct {
		Title string `yaml:"title"`
	}
	body, err := decodeFrontMatter([]byte("plain text"), &meta)
	require.NoError(t, err)
	assert.Equal(t, "plain text", body)

	body, err = decodeFrontMatter([]byte("---\ntitle: x\n---\n"), &meta)
	require.NoError(t, err)
	assert.Equal(t, "x", meta.Title)
	assert.Empty(t, body)

	_, err = decodeFrontMatter([]byte("---\ntitle: x\n"), &meta)
	require.Error(t, err)
}
