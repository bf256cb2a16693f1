package workflow

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/events"
	"github.com/casualjim/bookstart/internal/taskqueue"
	"github.com/casualjim/bookstart/manuscript"
	"github.com/casualjim/bookstart/pkg/slogx"
	"github.com/casualjim/bookstart/project"
)

// ProduceOptions narrow down a Produce run.
type ProduceOptions struct {
	// Force regenerates the outline and redrafts chapters that already exist.
	Force bool
	// Chapters limits the run to these chapter numbers. Empty means all.
	Chapters []int
	// SkipEdit drafts without editor passes.
	SkipEdit bool
}

// Result summarizes a Produce run.
type Result struct {
	Outline    *book.Outline    `json:"outline"`
	Written    []int            `json:"written"`
	Skipped    []int            `json:"skipped,omitempty"`
	Failed     []int            `json:"failed,omitempty"`
	Tasks      []taskqueue.Info `json:"tasks"`
	Manuscript manuscript.Stats `json:"manuscript"`
}

// LoadOrOutline returns the persisted outline when it matches the book, and
// generates a new one otherwise or when force is set.
func (pr *Producer) LoadOrOutline(ctx context.Context, b *book.Book, force bool) (*book.Outline, error) {
	if !force {
		outline, err := pr.project.LoadOutline()
		switch {
		case err == nil && len(outline.Chapters) == b.ChapterCount:
			return outline, nil
		case err != nil && !errors.Is(err, project.ErrNotFound):
			return nil, err
		}
	}
	return pr.Outline(ctx, b)
}

// Produce runs the whole pipeline for b: outline, one queued task per chapter
// (draft, then review and revise), task snapshot, manuscript. A failing
// chapter never stops its siblings; the joined chapter errors are returned
// and the book stays in the writing state.
func (pr *Producer) Produce(ctx context.Context, b *book.Book, options ProduceOptions) (*Result, error) {
	log := pr.logger(b)
	outline, err := pr.LoadOrOutline(ctx, b, options.Force)
	if err != nil {
		pr.progress(ctx, b, events.StageFailed, 0, err.Error())
		return nil, err
	}
	if err := pr.setStatus(b, book.StatusWriting); err != nil {
		return nil, err
	}

	numbers := options.Chapters
	if len(numbers) == 0 {
		for _, e := range outline.Chapters {
			numbers = append(numbers, e.Number)
		}
	}
	slices.Sort(numbers)
	numbers = slices.Compact(numbers)

	res := &Result{Outline: outline}
	queue := taskqueue.New(taskqueue.WithLimit(pr.settings.Workflow.Concurrency))
	submitted := make(map[string]int, len(numbers))
	for _, n := range numbers {
		if _, err := outline.Entry(n); err != nil {
			return nil, err
		}
		if !options.Force && pr.isDrafted(n) {
			res.Skipped = append(res.Skipped, n)
			continue
		}
		if ctx.Err() != nil {
			break
		}
		id := queue.Submit(ctx, fmt.Sprintf("chapter %d", n), pr.team.Writer.Name(), func(ctx context.Context) error {
			return pr.produceChapter(ctx, b, outline, n, !options.SkipEdit)
		})
		submitted[id] = n
	}

	runErr := queue.Wait()
	res.Tasks = queue.Snapshot()
	for _, t := range res.Tasks {
		if t.State == taskqueue.Succeeded {
			res.Written = append(res.Written, submitted[t.ID])
		} else {
			res.Failed = append(res.Failed, submitted[t.ID])
		}
	}
	if err := pr.project.SaveTasks(res.Tasks); err != nil {
		log.WarnContext(ctx, "failed to save task snapshot", slogx.Error(err))
	}

	pr.progress(ctx, b, events.StageBuild, 0, "assembling manuscript")
	stats, buildErr := manuscript.Build(pr.project)
	if buildErr != nil {
		runErr = errors.Join(runErr, fmt.Errorf("build manuscript: %w", buildErr))
	}
	res.Manuscript = stats

	if runErr == nil && stats.Complete() {
		if err := pr.setStatus(b, book.StatusComplete); err != nil {
			return res, err
		}
		pr.progress(ctx, b, events.StageDone, 0, fmt.Sprintf("%d chapters, %d words", stats.Chapters, stats.Words))
		return res, nil
	}
	if runErr != nil {
		pr.progress(ctx, b, events.StageFailed, 0, fmt.Sprintf("%d chapters failed", len(res.Failed)))
	} else {
		pr.progress(ctx, b, events.StageDone, 0, fmt.Sprintf("missing chapters %v", stats.Missing))
	}
	return res, runErr
}

func (pr *Producer) isDrafted(n int) bool {
	ch, err := pr.project.LoadChapter(n)
	if err != nil {
		return false
	}
	return ch.Status != book.ChapterFailed && ch.Status != book.ChapterPending && ch.Content != ""
}

func (pr *Producer) produceChapter(ctx context.Context, b *book.Book, outline *book.Outline, n int, edit bool) error {
	ch, err := pr.WriteChapter(ctx, b, outline, n)
	if err != nil {
		pr.progress(ctx, b, events.StageFailed, n, err.Error())
		return err
	}
	if !edit || pr.settings.Workflow.EditPasses == 0 {
		return nil
	}
	ch, _, err = pr.EditChapter(ctx, b, outline, ch, pr.settings.Workflow.EditPasses)
	if err != nil {
		pr.progress(ctx, b, events.StageFailed, n, err.Error())
		pr.markFailed(ctx, b, ch)
		return err
	}
	return nil
}

// markFailed flags a chapter whose draft or editing broke off so the next run
// drafts it again.
func (pr *Producer) markFailed(ctx context.Context, b *book.Book, ch *book.Chapter) {
	if ch == nil {
		return
	}
	failed := *ch
	failed.Status = book.ChapterFailed
	failed.UpdatedAt = pr.now().UTC()
	if err := pr.project.SaveChapter(&failed); err != nil {
		pr.logger(b).WarnContext(ctx, "failed to mark chapter as failed", slogx.Chapter(ch.Number), slogx.Error(err))
	}
}
