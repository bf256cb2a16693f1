// Package manuscript assembles the chapters of a project into a single
// markdown document and a JSON bundle.
package manuscript

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/project"
	json "github.com/goccy/go-json"
)

// Stats summarize an assembled manuscript.
type Stats struct {
	Chapters     int    `json:"chapters"`
	Words        int    `json:"words"`
	TargetWords  int    `json:"target_words"`
	Missing      []int  `json:"missing,omitempty"`
	MarkdownPath string `json:"markdown_path,omitempty"`
	JSONPath     string `json:"json_path,omitempty"`
}

// Complete reports whether every chapter of the outline is present.
func (s Stats) Complete() bool {
	return len(s.Missing) == 0
}

// Bundle is the JSON export of a book.
type Bundle struct {
	Book        *book.Book      `json:"book"`
	Outline     *book.Outline   `json:"outline,omitempty"`
	Chapters    []*book.Chapter `json:"chapters"`
	Stats       Stats           `json:"stats"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Assemble renders the manuscript of b. Chapters are emitted in number order;
// outline entries without a chapter are reported as missing. Without an outline
// the book's chapter count decides what is missing.
func Assemble(b *book.Book, outline *book.Outline, chapters []*book.Chapter) (string, Stats) {
	byNumber := make(map[int]*book.Chapter, len(chapters))
	for _, c := range chapters {
		byNumber[c.Number] = c
	}

	numbers := make([]int, 0, b.ChapterCount)
	titles := make(map[int]string, b.ChapterCount)
	if outline != nil && len(outline.Chapters) > 0 {
		for _, e := range outline.Chapters {
			numbers = append(numbers, e.Number)
			titles[e.Number] = e.Title
		}
	} else {
		for n := 1; n <= b.ChapterCount; n++ {
			numbers = append(numbers, n)
		}
	}
	// chapters drafted beyond the outline are still part of the book
	for _, c := range chapters {
		if _, ok := titles[c.Number]; !ok && c.Number > len(numbers) {
			numbers = append(numbers, c.Number)
		}
	}

	stats := Stats{TargetWords: b.TargetWords()}
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", b.Title)
	if outline != nil && outline.Synopsis != "" {
		fmt.Fprintf(&md, "_%s_\n\n", outline.Synopsis)
	}

	md.WriteString("## Contents\n\n")
	for _, n := range numbers {
		title := titles[n]
		if c, ok := byNumber[n]; ok {
			title = c.Title
		}
		fmt.Fprintf(&md, "%d. %s\n", n, title)
	}
	md.WriteString("\n")

	for _, n := range numbers {
		c, ok := byNumber[n]
		if !ok || c.Content == "" {
			stats.Missing = append(stats.Missing, n)
			continue
		}
		fmt.Fprintf(&md, "## Chapter %d: %s\n\n%s\n\n", c.Number, c.Title, c.Content)
		stats.Chapters++
		stats.Words += c.WordCount
	}
	return strings.TrimRight(md.String(), "\n") + "\n", stats
}

// Build assembles the project's manuscript and writes exports/<slug>.md and
// exports/<slug>.json.
func Build(p *project.Project) (Stats, error) {
	b, err := p.LoadBook()
	if err != nil {
		return Stats{}, err
	}
	outline, err := p.LoadOutline()
	if err != nil && !errors.Is(err, project.ErrNotFound) {
		return Stats{}, err
	}
	chapters, err := p.Chapters()
	if err != nil {
		return Stats{}, err
	}

	md, stats := Assemble(b, outline, chapters)
	if stats.MarkdownPath, err = p.Export(b.Slug()+".md", []byte(md)); err != nil {
		return Stats{}, fmt.Errorf("failed to export markdown: %w", err)
	}

	// the json path is known before the bundle is written
	stats.JSONPath = p.Path(project.ExportsDir, b.Slug()+".json")
	data, err := json.MarshalIndent(Bundle{
		Book:        b,
		Outline:     outline,
		Chapters:    chapters,
		Stats:       stats,
		GeneratedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return Stats{}, err
	}
	if _, err := p.Export(b.Slug()+".json", data); err != nil {
		return Stats{}, fmt.Errorf("failed to export bundle: %w", err)
	}
	return stats, nil
}
