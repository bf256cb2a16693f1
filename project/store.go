package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/internal/taskqueue"
	"github.com/casualjim/bookstart/pkg/uuidx"
)

const (
	outlineJSON = "outline.json"
	outlineMD   = "outline.md"
	usersFile   = "users.json"
	commentFile = "comments.json"
	tasksFile   = "tasks.json"
)

// SaveOutline writes outline/outline.json and the rendered outline/outline.md.
func (p *Project) SaveOutline(o *book.Outline) error {
	if err := writeJSON(p.Path(OutlineDir, outlineJSON), o); err != nil {
		return err
	}
	return writeFileAtomic(p.Path(OutlineDir, outlineMD), []byte(o.Markdown()), 0o644)
}

// LoadOutline reads outline/outline.json.
func (p *Project) LoadOutline() (*book.Outline, error) {
	var o book.Outline
	if err := readJSON(p.Path(OutlineDir, outlineJSON), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// SaveChapter writes drafts/NN-slug.md. Older files for the same chapter
// number (from a title change) are removed.
func (p *Project) SaveChapter(c *book.Chapter) error {
	if c.Number < 1 {
		return fmt.Errorf("%w: chapter number must be positive", book.ErrInvalid)
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	data, err := encodeFrontMatter(c, c.Content)
	if err != nil {
		return fmt.Errorf("failed to encode chapter %d: %w", c.Number, err)
	}
	path := p.Path(DraftsDir, c.Slug()+".md")
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return err
	}

	stale, _ := p.chapterFiles(c.Number)
	for _, f := range stale {
		if f != path {
			_ = os.Remove(f)
		}
	}
	return nil
}

func (p *Project) chapterFiles(n int) ([]string, error) {
	return filepath.Glob(p.Path(DraftsDir, fmt.Sprintf("%02d-*.md", n)))
}

// LoadChapter reads chapter n from drafts/.
func (p *Project) LoadChapter(n int) (*book.Chapter, error) {
	files, err := p.chapterFiles(n)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: chapter %d", ErrNotFound, n)
	}
	slices.Sort(files)
	return p.readChapter(files[len(files)-1])
}

func (p *Project) readChapter(path string) (*book.Chapter, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var c book.Chapter
	body, err := decodeFrontMatter(data, &c)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	c.Content = body
	c.WordCount = book.CountWords(body)
	return &c, nil
}

// Chapters returns every drafted chapter ordered by number.
func (p *Project) Chapters() ([]*book.Chapter, error) {
	files, err := filepath.Glob(p.Path(DraftsDir, "*.md"))
	if err != nil {
		return nil, err
	}
	byNumber := make(map[int]*book.Chapter, len(files))
	for _, f := range files {
		c, err := p.readChapter(f)
		if err != nil {
			return nil, err
		}
		byNumber[c.Number] = c
	}
	out := make([]*book.Chapter, 0, len(byNumber))
	for _, c := range byNumber {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// SaveEditReport writes edits/NN-pass-P.json.
func (p *Project) SaveEditReport(r *book.EditReport) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	return writeJSON(p.Path(EditsDir, editReportName(r.Chapter, r.Pass)), r)
}

func editReportName(chapter, pass int) string {
	return fmt.Sprintf("%02d-pass-%d.json", chapter, pass)
}

// EditReports returns the reports for a chapter ordered by pass.
func (p *Project) EditReports(chapter int) ([]*book.EditReport, error) {
	files, err := filepath.Glob(p.Path(EditsDir, fmt.Sprintf("%02d-pass-*.json", chapter)))
	if err != nil {
		return nil, err
	}
	out := make([]*book.EditReport, 0, len(files))
	for _, f := range files {
		var r book.EditReport
		if err := readJSON(f, &r); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pass < out[j].Pass })
	return out, nil
}

// SaveResearch writes research/slug.md with the keywords in the front matter.
func (p *Project) SaveResearch(r *book.ResearchTopic) error {
	if err := book.Validate(r); err != nil {
		return err
	}
	if r.Slug == "" {
		r.Slug = book.Slugify(r.Topic)
	}
	if p.researchTaken(r) {
		r.Slug += "-" + uuidx.Short()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	data, err := encodeFrontMatter(r, r.Notes)
	if err != nil {
		return err
	}
	return writeFileAtomic(p.Path(ResearchDir, r.Slug+".md"), data, 0o644)
}

// researchTaken reports whether r's slug already holds notes on another topic.
func (p *Project) researchTaken(r *book.ResearchTopic) bool {
	existing, err := p.LoadResearch(r.Slug)
	if err != nil {
		return false
	}
	return existing.Topic != r.Topic
}

// LoadResearch reads research/slug.md.
func (p *Project) LoadResearch(slug string) (*book.ResearchTopic, error) {
	return p.readResearch(p.Path(ResearchDir, filepath.Base(slug)+".md"))
}

func (p *Project) readResearch(path string) (*book.ResearchTopic, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var r book.ResearchTopic
	body, err := decodeFrontMatter(data, &r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	r.Notes = body
	if r.Slug == "" {
		r.Slug = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	return &r, nil
}

// Research returns every research note ordered by slug.
func (p *Project) Research() ([]*book.ResearchTopic, error) {
	files, err := filepath.Glob(p.Path(ResearchDir, "*.md"))
	if err != nil {
		return nil, err
	}
	slices.Sort(files)
	out := make([]*book.ResearchTopic, 0, len(files))
	for _, f := range files {
		r, err := p.readResearch(f)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// SaveUsers writes notes/users.json.
func (p *Project) SaveUsers(users []book.User) error {
	return writeJSON(p.Path(NotesDir, usersFile), users)
}

// LoadUsers reads notes/users.json. A project without collaborators yields an
// empty list.
func (p *Project) LoadUsers() ([]book.User, error) {
	var users []book.User
	if err := readJSON(p.Path(NotesDir, usersFile), &users); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return users, nil
}

// SaveComments writes notes/comments.json.
func (p *Project) SaveComments(comments []book.Comment) error {
	return writeJSON(p.Path(NotesDir, commentFile), comments)
}

// LoadComments reads notes/comments.json. A project without comments yields
// an empty list.
func (p *Project) LoadComments() ([]book.Comment, error) {
	var comments []book.Comment
	if err := readJSON(p.Path(NotesDir, commentFile), &comments); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return comments, nil
}

// SaveTasks writes the task queue snapshot to .bookstart/tasks.json.
func (p *Project) SaveTasks(tasks []taskqueue.Info) error {
	return writeJSON(p.Path(StateDir, tasksFile), tasks)
}

// LoadTasks reads the last task snapshot.
func (p *Project) LoadTasks() ([]taskqueue.Info, error) {
	var tasks []taskqueue.Info
	if err := readJSON(p.Path(StateDir, tasksFile), &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}
