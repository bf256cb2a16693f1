// Package durable runs book production as a Temporal workflow. Each stage is
// an activity so a crashed worker resumes from the last finished stage.
package durable

import (
	"context"
	"errors"
	"fmt"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/manuscript"
	"github.com/casualjim/bookstart/project"
	bookflow "github.com/casualjim/bookstart/workflow"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
)

// ChapterInput selects a chapter.
type ChapterInput struct {
	Number int  `json:"number"`
	Force  bool `json:"force,omitempty"`
}

// PassInput selects a review pass of a chapter.
type PassInput struct {
	Number int `json:"number"`
	Pass   int `json:"pass"`
}

// ChapterOutcome is the state of a chapter after an activity.
type ChapterOutcome struct {
	Number   int    `json:"number"`
	Words    int    `json:"words"`
	Revision int    `json:"revision"`
	Approved bool   `json:"approved,omitempty"`
	Skipped  bool   `json:"skipped,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Activities wrap a producer. Every activity reloads the book from the
// project so activities can run on any worker that shares the project
// directory.
type Activities struct {
	Producer *bookflow.Producer
}

func (a *Activities) load() (*book.Book, error) {
	b, err := a.Producer.Project().LoadBook()
	if err != nil {
		return nil, nonRetryable(err)
	}
	return b, nil
}

func (a *Activities) outline() (*book.Outline, error) {
	o, err := a.Producer.Project().LoadOutline()
	if err != nil {
		return nil, nonRetryable(err)
	}
	return o, nil
}

// nonRetryable stops Temporal from retrying errors a retry cannot fix.
func nonRetryable(err error) error {
	switch {
	case errors.Is(err, project.ErrNotFound),
		errors.Is(err, book.ErrInvalid),
		errors.Is(err, bookflow.ErrShortOutline):
		return temporal.NewNonRetryableApplicationError(err.Error(), "bookstart", err)
	default:
		return err
	}
}

// GenerateOutline loads or generates the outline and returns its chapter
// numbers.
func (a *Activities) GenerateOutline(ctx context.Context, force bool) ([]int, error) {
	b, err := a.load()
	if err != nil {
		return nil, err
	}
	activity.GetLogger(ctx).Info("generating outline", "book", b.ID, "force", force)

	outline, err := a.Producer.LoadOrOutline(ctx, b, force)
	if err != nil {
		return nil, nonRetryable(err)
	}
	if _, err := a.Producer.Project().UpdateBook(func(stored *book.Book) error {
		stored.Status = book.StatusWriting
		return nil
	}); err != nil {
		return nil, err
	}

	numbers := make([]int, 0, len(outline.Chapters))
	for _, e := range outline.Chapters {
		numbers = append(numbers, e.Number)
	}
	return numbers, nil
}

// DraftChapter writes a chapter unless a usable draft exists and force is
// off.
func (a *Activities) DraftChapter(ctx context.Context, in ChapterInput) (ChapterOutcome, error) {
	if !in.Force {
		if ch, err := a.Producer.Project().LoadChapter(in.Number); err == nil && ch.Content != "" && ch.Status != book.ChapterFailed {
			return ChapterOutcome{Number: ch.Number, Words: ch.WordCount, Revision: ch.Revision, Skipped: true}, nil
		}
	}
	b, err := a.load()
	if err != nil {
		return ChapterOutcome{}, err
	}
	outline, err := a.outline()
	if err != nil {
		return ChapterOutcome{}, err
	}
	ch, err := a.Producer.WriteChapter(ctx, b, outline, in.Number)
	if err != nil {
		return ChapterOutcome{}, nonRetryable(err)
	}
	return ChapterOutcome{Number: ch.Number, Words: ch.WordCount, Revision: ch.Revision}, nil
}

// ReviewChapter runs one editor pass.
func (a *Activities) ReviewChapter(ctx context.Context, in PassInput) (book.EditReport, error) {
	b, err := a.load()
	if err != nil {
		return book.EditReport{}, err
	}
	outline, err := a.outline()
	if err != nil {
		return book.EditReport{}, err
	}
	ch, err := a.Producer.Project().LoadChapter(in.Number)
	if err != nil {
		return book.EditReport{}, nonRetryable(err)
	}
	report, err := a.Producer.ReviewChapter(ctx, b, outline, ch, in.Pass)
	if err != nil {
		return book.EditReport{}, err
	}
	return *report, nil
}

// ReviseChapter reworks a chapter from the report of the given pass.
func (a *Activities) ReviseChapter(ctx context.Context, in PassInput) (ChapterOutcome, error) {
	b, err := a.load()
	if err != nil {
		return ChapterOutcome{}, err
	}
	ch, err := a.Producer.Project().LoadChapter(in.Number)
	if err != nil {
		return ChapterOutcome{}, nonRetryable(err)
	}
	reports, err := a.Producer.Project().EditReports(in.Number)
	if err != nil {
		return ChapterOutcome{}, err
	}
	var report *book.EditReport
	for _, r := range reports {
		if r.Pass == in.Pass {
			report = r
		}
	}
	if report == nil {
		return ChapterOutcome{}, nonRetryable(fmt.Errorf("%w: report for chapter %d pass %d", project.ErrNotFound, in.Number, in.Pass))
	}
	revised, err := a.Producer.ReviseChapter(ctx, b, ch, report)
	if err != nil {
		return ChapterOutcome{}, err
	}
	return ChapterOutcome{Number: revised.Number, Words: revised.WordCount, Revision: revised.Revision}, nil
}

// AssembleManuscript builds the exports. The book is marked complete when
// every chapter is present and none failed.
func (a *Activities) AssembleManuscript(ctx context.Context, failed int) (manuscript.Stats, error) {
	stats, err := manuscript.Build(a.Producer.Project())
	if err != nil {
		return manuscript.Stats{}, err
	}
	if failed == 0 && stats.Complete() {
		if _, err := a.Producer.Project().UpdateBook(func(stored *book.Book) error {
			stored.Status = book.StatusComplete
			return nil
		}); err != nil {
			return stats, err
		}
	}
	activity.GetLogger(ctx).Info("manuscript assembled", "chapters", stats.Chapters, "words", stats.Words)
	return stats, nil
}
