package book

import (
	"fmt"
	"strings"
)

// Outline drives chapter generation: one entry per chapter, in order.
type Outline struct {
	Title    string         `json:"title" jsonschema:"description=Title of the book"`
	Synopsis string         `json:"synopsis" jsonschema:"description=Two or three sentence synopsis of the whole book"`
	Chapters []OutlineEntry `json:"chapters" jsonschema:"description=The chapters in reading order"`
}

// OutlineEntry describes a single chapter of the outline.
type OutlineEntry struct {
	Number   int      `json:"number" jsonschema:"description=1-based chapter number"`
	Title    string   `json:"title" jsonschema:"description=Chapter title"`
	Summary  string   `json:"summary" jsonschema:"description=What happens or is explained in the chapter"`
	Keywords []string `json:"keywords" jsonschema:"description=Three to six keywords for the chapter"`
}

// Normalize drops entries without a title, trims whitespace, renumbers the
// chapters 1..n in their current order and truncates the list to limit entries
// when limit > 0.
func (o *Outline) Normalize(limit int) {
	o.Title = strings.TrimSpace(o.Title)
	o.Synopsis = strings.TrimSpace(o.Synopsis)

	entries := make([]OutlineEntry, 0, len(o.Chapters))
	for _, e := range o.Chapters {
		e.Title = strings.TrimSpace(e.Title)
		if e.Title == "" {
			continue
		}
		e.Summary = strings.TrimSpace(e.Summary)
		kws := make([]string, 0, len(e.Keywords))
		for _, kw := range e.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				kws = append(kws, kw)
			}
		}
		e.Keywords = kws
		entries = append(entries, e)
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Number = i + 1
	}
	o.Chapters = entries
}

// Entry returns the outline entry for chapter n.
func (o *Outline) Entry(n int) (OutlineEntry, error) {
	if n < 1 || n > len(o.Chapters) {
		return OutlineEntry{}, fmt.Errorf("%w: chapter %d is not in the outline (1..%d)", ErrInvalid, n, len(o.Chapters))
	}
	return o.Chapters[n-1], nil
}

// Neighbours returns the entries before and after chapter n. Missing
// neighbours are returned as nil.
func (o *Outline) Neighbours(n int) (prev, next *OutlineEntry) {
	if n-2 >= 0 && n-2 < len(o.Chapters) {
		prev = &o.Chapters[n-2]
	}
	if n >= 0 && n < len(o.Chapters) {
		next = &o.Chapters[n]
	}
	return prev, next
}

// Markdown renders the outline as a human readable document.
func (o *Outline) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", o.Title)
	if o.Synopsis != "" {
		fmt.Fprintf(&b, "%s\n\n", o.Synopsis)
	}
	for _, e := range o.Chapters {
		fmt.Fprintf(&b, "## %d. %s\n\n", e.Number, e.Title)
		if e.Summary != "" {
			fmt.Fprintf(&b, "%s\n\n", e.Summary)
		}
		if len(e.Keywords) > 0 {
			fmt.Fprintf(&b, "_Keywords: %s_\n\n", strings.Join(e.Keywords, ", "))
		}
	}
	return b.String()
}
