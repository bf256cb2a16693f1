package workflow

import (
	"fmt"
	"strings"

	"github.com/casualjim/bookstart/book"
)

const maxResearchNotes = 3

func outlinePrompt(b *book.Book) string {
	return fmt.Sprintf(
		"Create the outline for %q: exactly %d chapters, numbered 1 to %d, each with a title, a summary and keywords.",
		b.Title, b.ChapterCount, b.ChapterCount,
	)
}

func outlineRetryPrompt(got, want int) string {
	return fmt.Sprintf(
		"Your outline has %d chapters but the book needs exactly %d. Return the complete outline again with %d chapters.",
		got, want, want,
	)
}

func researchPrompt(topic string) string {
	return "Research topic: " + topic
}

func chapterPrompt(b *book.Book, outline *book.Outline, entry book.OutlineEntry, notes []*book.ResearchTopic) string {
	var s strings.Builder
	fmt.Fprintf(&s, "Write chapter %d of %d: %q.\n\n", entry.Number, len(outline.Chapters), entry.Title)
	if outline.Synopsis != "" {
		fmt.Fprintf(&s, "Book synopsis: %s\n\n", outline.Synopsis)
	}
	if entry.Summary != "" {
		fmt.Fprintf(&s, "This chapter: %s\n", entry.Summary)
	}
	if len(entry.Keywords) > 0 {
		fmt.Fprintf(&s, "Keywords: %s\n", strings.Join(entry.Keywords, ", "))
	}

	prev, next := outline.Neighbours(entry.Number)
	if prev != nil {
		fmt.Fprintf(&s, "\nPrevious chapter (%d. %s): %s\n", prev.Number, prev.Title, prev.Summary)
	}
	if next != nil {
		fmt.Fprintf(&s, "Next chapter (%d. %s): %s\n", next.Number, next.Title, next.Summary)
	}

	if len(notes) > 0 {
		s.WriteString("\nResearch notes you can draw on:\n")
		for _, n := range notes {
			fmt.Fprintf(&s, "\n### %s\n%s\n", n.Topic, n.Notes)
		}
	}
	fmt.Fprintf(&s, "\nWrite about %d words. Return only the chapter text.", b.WordsPerChapter)
	return s.String()
}

func continuationPrompt(have, want int) string {
	return fmt.Sprintf(
		"The chapter has %d words so far and needs about %d. Continue exactly where it stops, without repeating anything. Return only the new text.",
		have, want,
	)
}

func reviewPrompt(entry book.OutlineEntry, ch *book.Chapter, pass int) string {
	var s strings.Builder
	fmt.Fprintf(&s, "Review pass %d of chapter %d %q.\n", pass, ch.Number, ch.Title)
	if entry.Summary != "" {
		fmt.Fprintf(&s, "Outline entry: %s\n", entry.Summary)
	}
	fmt.Fprintf(&s, "\n---\n%s\n---\n", ch.Content)
	return s.String()
}

func revisionPrompt(ch *book.Chapter, report *book.EditReport) string {
	var s strings.Builder
	fmt.Fprintf(&s, "Revise chapter %d %q using the editor's report.\n\n", ch.Number, ch.Title)
	fmt.Fprintf(&s, "Editor score: %d/10\nSummary: %s\n", report.Score, report.Summary)
	if len(report.Issues) > 0 {
		s.WriteString("\nIssues:\n")
		for _, i := range report.Issues {
			fmt.Fprintf(&s, "- %s\n", i)
		}
	}
	if len(report.Suggestions) > 0 {
		s.WriteString("\nSuggestions:\n")
		for _, i := range report.Suggestions {
			fmt.Fprintf(&s, "- %s\n", i)
		}
	}
	fmt.Fprintf(&s, "\nCurrent text:\n---\n%s\n---\n\nReturn the complete revised chapter and nothing else.", ch.Content)
	return s.String()
}

// splitKeywords separates a trailing "Keywords: a, b" line from research
// notes.
func splitKeywords(notes string) (string, []string) {
	lines := strings.Split(strings.TrimSpace(notes), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		trimmed := strings.TrimLeft(line, "*_# ")
		lower := strings.ToLower(trimmed)
		if !strings.HasPrefix(lower, "keywords:") {
			break
		}
		var kws []string
		for _, kw := range strings.Split(trimmed[len("keywords:"):], ",") {
			kw = strings.ToLower(strings.Trim(kw, " *_.\t"))
			if kw != "" {
				kws = append(kws, kw)
			}
		}
		return strings.TrimSpace(strings.Join(lines[:i], "\n")), kws
	}
	return strings.TrimSpace(notes), nil
}
