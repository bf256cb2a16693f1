package durable

import (
	"fmt"
	"time"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/internal/retry"
	"github.com/casualjim/bookstart/manuscript"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// BookInput starts a BookWorkflow.
type BookInput struct {
	BookID     string       `json:"book_id"`
	Force      bool         `json:"force,omitempty"`
	EditPasses int          `json:"edit_passes"`
	Retry      retry.Policy `json:"retry"`
}

// BookResult summarizes a finished BookWorkflow.
type BookResult struct {
	Chapters   []ChapterOutcome `json:"chapters"`
	Failed     []int            `json:"failed,omitempty"`
	Manuscript manuscript.Stats `json:"manuscript"`
}

func retryPolicy(p retry.Policy) *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		InitialInterval:    p.InitialInterval,
		BackoffCoefficient: max(p.BackoffCoefficient, 1),
		MaximumInterval:    p.MaxInterval,
		MaximumAttempts:    int32(max(p.MaxAttempts, 1)),
	}
}

func llmActivity(ctx workflow.Context, policy retry.Policy) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout:    10 * time.Minute,
		ScheduleToStartTimeout: time.Minute,
		RetryPolicy:            retryPolicy(policy),
	})
}

// BookWorkflow produces a book: outline, then every chapter in parallel
// (draft, review, revise while not approved), then the manuscript. Chapter
// failures are reported in the result and never stop the other chapters.
func BookWorkflow(ctx workflow.Context, in BookInput) (BookResult, error) {
	var a *Activities
	log := workflow.GetLogger(ctx)
	log.Info("producing book", "book", in.BookID)

	actx := llmActivity(ctx, in.Retry)

	var numbers []int
	if err := workflow.ExecuteActivity(actx, a.GenerateOutline, in.Force).Get(ctx, &numbers); err != nil {
		return BookResult{}, fmt.Errorf("outline: %w", err)
	}

	outcomes := make([]ChapterOutcome, len(numbers))
	wg := workflow.NewWaitGroup(ctx)
	for i, n := range numbers {
		wg.Add(1)
		workflow.Go(ctx, func(gctx workflow.Context) {
			defer wg.Done()
			outcome, err := produceChapter(llmActivity(gctx, in.Retry), a, in, n)
			if err != nil {
				log.Warn("chapter failed", "chapter", n, "error", err)
				outcome = ChapterOutcome{Number: n, Error: err.Error()}
			}
			outcomes[i] = outcome
		})
	}
	wg.Wait(ctx)

	res := BookResult{Chapters: outcomes}
	for _, o := range outcomes {
		if o.Error != "" {
			res.Failed = append(res.Failed, o.Number)
		}
	}

	if err := workflow.ExecuteActivity(actx, a.AssembleManuscript, len(res.Failed)).Get(ctx, &res.Manuscript); err != nil {
		return res, fmt.Errorf("assemble: %w", err)
	}
	return res, nil
}

func produceChapter(ctx workflow.Context, a *Activities, in BookInput, n int) (ChapterOutcome, error) {
	var outcome ChapterOutcome
	if err := workflow.ExecuteActivity(ctx, a.DraftChapter, ChapterInput{Number: n, Force: in.Force}).Get(ctx, &outcome); err != nil {
		return ChapterOutcome{}, err
	}
	if outcome.Skipped {
		return outcome, nil
	}

	for pass := 1; pass <= in.EditPasses; pass++ {
		var report book.EditReport
		if err := workflow.ExecuteActivity(ctx, a.ReviewChapter, PassInput{Number: n, Pass: pass}).Get(ctx, &report); err != nil {
			return outcome, err
		}
		if report.Approved {
			outcome.Approved = true
			break
		}
		if err := workflow.ExecuteActivity(ctx, a.ReviseChapter, PassInput{Number: n, Pass: pass}).Get(ctx, &outcome); err != nil {
			return outcome, err
		}
	}
	return outcome, nil
}
