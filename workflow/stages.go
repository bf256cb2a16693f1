package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/casualjim/bookstart"
	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/casualjim/bookstart/project"
)

// Outline asks the outliner for the chapter plan and persists it. The result
// has exactly ChapterCount entries: extras are dropped and a short outline is
// requested once more before failing with ErrShortOutline.
func (pr *Producer) Outline(ctx context.Context, b *book.Book) (*book.Outline, error) {
	pr.progress(ctx, b, events.StageOutline, 0, "generating outline")

	thread := shorttermmemory.New()
	structured := bookstart.StructuredOutput[book.Outline]("outline", "The chapter plan of the book")
	outline, err := call[book.Outline](ctx, pr, pr.team.Outliner, b, outlinePrompt(b), bookstart.WithThread(thread), structured)
	if err != nil {
		return nil, fmt.Errorf("outline: %w", err)
	}
	outline.Normalize(b.ChapterCount)

	if len(outline.Chapters) < b.ChapterCount {
		pr.logger(b).WarnContext(ctx, "outline too short, asking again")
		outline, err = call[book.Outline](ctx, pr, pr.team.Outliner, b, outlineRetryPrompt(len(outline.Chapters), b.ChapterCount), bookstart.WithThread(thread), structured)
		if err != nil {
			return nil, fmt.Errorf("outline: %w", err)
		}
		outline.Normalize(b.ChapterCount)
		if len(outline.Chapters) < b.ChapterCount {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrShortOutline, len(outline.Chapters), b.ChapterCount)
		}
	}
	if outline.Title == "" {
		outline.Title = b.Title
	}

	if err := pr.project.SaveOutline(&outline); err != nil {
		return nil, err
	}
	if b.Status == book.StatusDraft {
		if err := pr.setStatus(b, book.StatusOutlined); err != nil {
			return nil, err
		}
	}
	pr.progress(ctx, b, events.StageSaved, 0, fmt.Sprintf("outline with %d chapters", len(outline.Chapters)))
	return &outline, nil
}

// Research has the researcher write notes on topic and stores them under
// research/.
func (pr *Producer) Research(ctx context.Context, b *book.Book, topic string) (*book.ResearchTopic, error) {
	topic = strings.TrimSpace(topic)
	pr.progress(ctx, b, events.StageResearch, 0, topic)

	notes, err := call[string](ctx, pr, pr.team.Researcher, b, researchPrompt(topic))
	if err != nil {
		return nil, fmt.Errorf("research %q: %w", topic, err)
	}
	body, keywords := splitKeywords(notes)
	r := &book.ResearchTopic{
		Topic:     topic,
		Slug:      book.Slugify(topic),
		Notes:     body,
		Keywords:  keywords,
		CreatedAt: pr.now().UTC(),
	}
	if err := pr.project.SaveResearch(r); err != nil {
		return nil, err
	}
	return r, nil
}

// relevantResearch returns the research notes sharing the most keywords with
// the chapter entry.
func (pr *Producer) relevantResearch(entry book.OutlineEntry) ([]*book.ResearchTopic, error) {
	all, err := pr.project.Research()
	if err != nil {
		return nil, err
	}
	keywords := append([]string(nil), entry.Keywords...)
	for _, w := range strings.Fields(strings.ToLower(entry.Title)) {
		if len(w) > 3 {
			keywords = append(keywords, w)
		}
	}

	type scored struct {
		topic *book.ResearchTopic
		score int
	}
	var hits []scored
	for _, r := range all {
		if s := r.Relevance(keywords); s > 0 {
			hits = append(hits, scored{r, s})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	out := make([]*book.ResearchTopic, 0, maxResearchNotes)
	for _, h := range hits {
		if len(out) == maxResearchNotes {
			break
		}
		out = append(out, h.topic)
	}
	return out, nil
}

// WriteChapter drafts chapter n. Drafts shorter than min_word_ratio of the
// target length are continued up to max_continuations times. When drafting
// fails, a chapter already on disk is marked failed so the next run redrafts
// it.
func (pr *Producer) WriteChapter(ctx context.Context, b *book.Book, outline *book.Outline, n int) (*book.Chapter, error) {
	ch, err := pr.draftChapter(ctx, b, outline, n)
	if err != nil {
		if stale, lerr := pr.project.LoadChapter(n); lerr == nil {
			pr.markFailed(ctx, b, stale)
		}
		return nil, err
	}
	return ch, nil
}

func (pr *Producer) draftChapter(ctx context.Context, b *book.Book, outline *book.Outline, n int) (*book.Chapter, error) {
	entry, err := outline.Entry(n)
	if err != nil {
		return nil, err
	}
	notes, err := pr.relevantResearch(entry)
	if err != nil {
		return nil, err
	}

	pr.progress(ctx, b, events.StageDraft, n, entry.Title)
	thread := shorttermmemory.New()
	text, err := call[string](ctx, pr, pr.team.Writer, b, chapterPrompt(b, outline, entry, notes), bookstart.WithThread(thread))
	if err != nil {
		return nil, fmt.Errorf("chapter %d: %w", n, err)
	}

	ch := &book.Chapter{Number: n, Title: entry.Title, Revision: 1, Status: book.ChapterDrafted}
	ch.SetContent(text)

	minWords := int(pr.settings.Workflow.MinWordRatio * float64(b.WordsPerChapter))
	for i := 0; i < pr.settings.Workflow.MaxContinuations && ch.WordCount < minWords; i++ {
		pr.progress(ctx, b, events.StageContinue, n, fmt.Sprintf("%d of %d words", ch.WordCount, b.WordsPerChapter))
		more, err := call[string](ctx, pr, pr.team.Writer, b, continuationPrompt(ch.WordCount, b.WordsPerChapter), bookstart.WithThread(thread))
		if err != nil {
			return nil, fmt.Errorf("chapter %d continuation: %w", n, err)
		}
		before := ch.WordCount
		ch.Append(more)
		if ch.WordCount == before {
			break
		}
	}

	ch.UpdatedAt = pr.now().UTC()
	if err := pr.project.SaveChapter(ch); err != nil {
		return nil, err
	}
	pr.progress(ctx, b, events.StageSaved, n, fmt.Sprintf("draft, %d words", ch.WordCount))
	return ch, nil
}

// ReviewChapter has the editor score the chapter. Approval is withdrawn when
// the score is below approve_score. The report is saved as edits/NN-pass-P.json.
func (pr *Producer) ReviewChapter(ctx context.Context, b *book.Book, outline *book.Outline, ch *book.Chapter, pass int) (*book.EditReport, error) {
	entry, _ := outline.Entry(ch.Number)
	if err := pr.enterEditing(); err != nil {
		return nil, err
	}
	pr.progress(ctx, b, events.StageReview, ch.Number, fmt.Sprintf("pass %d", pass))

	report, err := call[book.EditReport](ctx, pr, pr.team.Editor, b, reviewPrompt(entry, ch, pass),
		bookstart.StructuredOutput[book.EditReport]("edit_report", "The editor's assessment of one chapter"))
	if err != nil {
		return nil, fmt.Errorf("review chapter %d: %w", ch.Number, err)
	}
	report.Chapter = ch.Number
	report.Pass = pass
	report.CreatedAt = pr.now().UTC()
	report.Clamp(pr.settings.Workflow.ApproveScore)

	if err := pr.project.SaveEditReport(&report); err != nil {
		return nil, err
	}
	ch.Status = book.ChapterReviewed
	ch.UpdatedAt = pr.now().UTC()
	if err := pr.project.SaveChapter(ch); err != nil {
		return nil, err
	}
	pr.progress(ctx, b, events.StageSaved, ch.Number, fmt.Sprintf("review pass %d: score %d/10, approved=%t", pass, report.Score, report.Approved))
	return &report, nil
}

// ReviseChapter has the writer rework the chapter from an edit report.
func (pr *Producer) ReviseChapter(ctx context.Context, b *book.Book, ch *book.Chapter, report *book.EditReport) (*book.Chapter, error) {
	pr.progress(ctx, b, events.StageRevise, ch.Number, fmt.Sprintf("revision %d", ch.Revision+1))

	text, err := call[string](ctx, pr, pr.team.Writer, b, revisionPrompt(ch, report))
	if err != nil {
		return nil, fmt.Errorf("revise chapter %d: %w", ch.Number, err)
	}
	revised := *ch
	revised.SetContent(text)
	revised.Revision++
	revised.Status = book.ChapterRevised
	revised.UpdatedAt = pr.now().UTC()
	if err := pr.project.SaveChapter(&revised); err != nil {
		return nil, err
	}
	pr.progress(ctx, b, events.StageSaved, ch.Number, fmt.Sprintf("revision %d, %d words", revised.Revision, revised.WordCount))
	return &revised, nil
}

// EditChapter runs up to passes review passes, revising after every pass that
// is not approved. Pass numbers continue after the reports already on disk.
func (pr *Producer) EditChapter(ctx context.Context, b *book.Book, outline *book.Outline, ch *book.Chapter, passes int) (*book.Chapter, []*book.EditReport, error) {
	existing, err := pr.project.EditReports(ch.Number)
	if err != nil && !errors.Is(err, project.ErrNotFound) {
		return nil, nil, err
	}
	first := len(existing) + 1

	var reports []*book.EditReport
	for pass := first; pass < first+passes; pass++ {
		report, err := pr.ReviewChapter(ctx, b, outline, ch, pass)
		if err != nil {
			return ch, reports, err
		}
		reports = append(reports, report)
		if report.Approved {
			break
		}
		revised, err := pr.ReviseChapter(ctx, b, ch, report)
		if err != nil {
			return ch, reports, err
		}
		ch = revised
	}
	return ch, reports, nil
}
