package book

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ChapterStatus tracks a chapter through drafting and editing.
type ChapterStatus string

const (
	ChapterPending  ChapterStatus = "pending"
	ChapterDrafted  ChapterStatus = "drafted"
	ChapterReviewed ChapterStatus = "reviewed"
	ChapterRevised  ChapterStatus = "revised"
	ChapterFailed   ChapterStatus = "failed"
)

// Chapter is a drafted chapter of the book.
type Chapter struct {
	Number    int           `json:"number" yaml:"number"`
	Title     string        `json:"title" yaml:"title"`
	Content   string        `json:"content" yaml:"-"`
	WordCount int           `json:"word_count" yaml:"word_count"`
	Revision  int           `json:"revision" yaml:"revision"`
	Status    ChapterStatus `json:"status" yaml:"status"`
	UpdatedAt time.Time     `json:"updated_at" yaml:"updated_at"`
}

// Slug is the base name used for the chapter's files, e.g. "03-the-storm".
func (c *Chapter) Slug() string {
	return fmt.Sprintf("%02d-%s", c.Number, Slugify(c.Title))
}

// SetContent replaces the content and recounts the words.
func (c *Chapter) SetContent(content string) {
	c.Content = strings.TrimSpace(content)
	c.WordCount = CountWords(c.Content)
}

// Append adds more text to the chapter, separated by a blank line.
func (c *Chapter) Append(more string) {
	more = strings.TrimSpace(more)
	if more == "" {
		return
	}
	if c.Content == "" {
		c.SetContent(more)
		return
	}
	c.SetContent(c.Content + "\n\n" + more)
}

// CountWords counts whitespace separated tokens that contain at least one
// letter or digit, so markdown markers like "#" or "---" aren't words.
func CountWords(text string) int {
	n := 0
	for _, f := range strings.Fields(text) {
		if strings.IndexFunc(f, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) >= 0 {
			n++
		}
	}
	return n
}
