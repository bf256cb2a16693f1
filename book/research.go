package book

import (
	"strings"
	"time"
)

// ResearchTopic is a note produced by the researcher agent (or written by hand)
// that can be fed to the writer as background material.
type ResearchTopic struct {
	Topic     string    `json:"topic" yaml:"topic" validate:"required,min=2,max=300"`
	Slug      string    `json:"slug" yaml:"slug"`
	Notes     string    `json:"notes" yaml:"-"`
	Keywords  []string  `json:"keywords" yaml:"keywords"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Relevance is the number of distinct keywords the topic shares with the given
// keywords; topic words count as keywords too.
func (r *ResearchTopic) Relevance(keywords []string) int {
	own := make(map[string]struct{}, len(r.Keywords))
	for _, kw := range r.Keywords {
		own[strings.ToLower(kw)] = struct{}{}
	}
	for _, w := range strings.Fields(strings.ToLower(r.Topic)) {
		if len(w) > 3 {
			own[w] = struct{}{}
		}
	}

	seen := make(map[string]struct{}, len(keywords))
	score := 0
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		if _, ok := own[kw]; ok {
			score++
		}
	}
	return score
}
