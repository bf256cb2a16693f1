package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/internal/console"
	"github.com/casualjim/bookstart/manuscript"
	"github.com/casualjim/bookstart/pkg/tprl"
	"github.com/casualjim/bookstart/pkg/uuidx"
	"github.com/casualjim/bookstart/project"
	"github.com/casualjim/bookstart/workflow"
	"github.com/casualjim/bookstart/workflow/durable"
	"github.com/spf13/cobra"
)

const renderWidth = 100

func newBookCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Create, write and edit the project's book",
	}
	cmd.AddCommand(
		newBookCreateCmd(a),
		newBookOutlineCmd(a),
		newBookWriteCmd(a),
		newBookEditCmd(a),
		newBookGenerateCmd(a),
		newBookBuildCmd(a),
		newBookStatusCmd(a),
		newBookShowCmd(a),
	)
	return cmd
}

func newBookCreateCmd(a *app) *cobra.Command {
	var (
		b     book.Book
		force bool
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Describe the book to write",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open()
			if err != nil {
				return err
			}
			if p.HasBook() && !force {
				return fmt.Errorf("%s already has a book, use --force to replace it", p.Root())
			}

			b.ID = uuidx.NewString()
			b.Status = book.StatusDraft
			b.Touch(time.Now())
			if err := p.SaveBook(&b); err != nil {
				return err
			}
			a.printf("created %q (%d chapters of ~%d words)\n", b.Title, b.ChapterCount, b.WordsPerChapter)
			a.dump(b)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&b.Title, "title", "", "title of the book")
	flags.StringVar(&b.Theme, "theme", "", "what the book is about")
	flags.StringVar(&b.Genre, "genre", "", "genre")
	flags.StringVar(&b.Audience, "audience", "", "intended readers")
	flags.StringVar(&b.Style, "style", "", "writing style")
	flags.StringVar(&b.Language, "language", "English", "language to write in")
	flags.IntVar(&b.ChapterCount, "chapters", 10, "number of chapters")
	flags.IntVar(&b.WordsPerChapter, "words", 2000, "target words per chapter")
	flags.BoolVar(&force, "force", false, "replace an existing book")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("theme")
	return cmd
}

func newBookOutlineCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "outline",
		Short: "Generate the chapter outline, or print the existing one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, b, err := a.openBook()
			if err != nil {
				return err
			}
			pr, release, err := a.producer(cmd.Context(), p, b, false)
			if err != nil {
				return err
			}
			defer release()

			outline, err := pr.LoadOrOutline(cmd.Context(), b, force)
			if err != nil {
				return err
			}
			return console.Markdown(a.out, outline.Markdown(), renderWidth)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "regenerate even when an outline exists")
	return cmd
}

func newBookWriteCmd(a *app) *cobra.Command {
	var (
		chapter int
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Draft chapters without editing them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, b, err := a.openBook()
			if err != nil {
				return err
			}
			pr, release, err := a.producer(cmd.Context(), p, b, false)
			if err != nil {
				return err
			}
			defer release()

			if chapter == 0 {
				res, err := pr.Produce(cmd.Context(), b, workflow.ProduceOptions{Force: force, SkipEdit: true})
				if res != nil {
					a.printResult(res)
				}
				return err
			}

			if !force {
				if ch, err := p.LoadChapter(chapter); err == nil && ch.Status != book.ChapterFailed && ch.Status != book.ChapterPending {
					return fmt.Errorf("chapter %d is already drafted, use --force to redraft it", chapter)
				}
			}
			outline, err := pr.LoadOrOutline(cmd.Context(), b, false)
			if err != nil {
				return err
			}
			ch, err := pr.WriteChapter(cmd.Context(), b, outline, chapter)
			if err != nil {
				return err
			}
			a.printf("chapter %d %q: %d words\n", ch.Number, ch.Title, ch.WordCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&chapter, "chapter", 0, "only draft this chapter")
	cmd.Flags().BoolVar(&force, "force", false, "redraft chapters that already exist")
	return cmd
}

func newBookEditCmd(a *app) *cobra.Command {
	var chapter, passes int
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Review and revise a drafted chapter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, b, err := a.openBook()
			if err != nil {
				return err
			}
			ch, err := p.LoadChapter(chapter)
			if errors.Is(err, project.ErrNotFound) {
				return fmt.Errorf("chapter %d has not been drafted yet", chapter)
			}
			if err != nil {
				return err
			}
			outline, err := p.LoadOutline()
			if err != nil {
				return err
			}
			pr, release, err := a.producer(cmd.Context(), p, b, false)
			if err != nil {
				return err
			}
			defer release()

			if passes <= 0 {
				passes = max(pr.Settings().EditPasses, 1)
			}
			ch, reports, err := pr.EditChapter(cmd.Context(), b, outline, ch, passes)
			for _, r := range reports {
				verdict := "changes requested"
				if r.Approved {
					verdict = "approved"
				}
				a.printf("pass %d: %d/10, %s. %s\n", r.Pass, r.Score, verdict, r.Summary)
			}
			if err != nil {
				return err
			}
			a.printf("chapter %d is at revision %d (%d words)\n", ch.Number, ch.Revision, ch.WordCount)
			return nil
		},
	}
	cmd.Flags().IntVar(&chapter, "chapter", 0, "chapter to edit")
	cmd.Flags().IntVar(&passes, "passes", 0, "maximum review passes (defaults to workflow.edit_passes)")
	_ = cmd.MarkFlagRequired("chapter")
	return cmd
}

func newBookGenerateCmd(a *app) *cobra.Command {
	var force, durableRun bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Outline, draft, edit and assemble the whole book",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, b, err := a.openBook()
			if err != nil {
				return err
			}
			if durableRun {
				return a.generateDurable(cmd, p, b, force)
			}

			pr, release, err := a.producer(cmd.Context(), p, b, false)
			if err != nil {
				return err
			}
			defer release()

			res, err := pr.Produce(cmd.Context(), b, workflow.ProduceOptions{Force: force})
			if res != nil {
				a.printResult(res)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "regenerate the outline and every chapter")
	cmd.Flags().BoolVar(&durableRun, "durable", false, "run on Temporal; requires a running `bookstart worker`")
	return cmd
}

func (a *app) generateDurable(cmd *cobra.Command, p *project.Project, b *book.Book, force bool) error {
	s := p.Settings()
	c, err := tprl.NewClient(tprl.Options{Address: s.Temporal.Address, Namespace: s.Temporal.Namespace})
	if err != nil {
		return err
	}
	defer c.Close()

	run, err := durable.Start(cmd.Context(), c, s.Temporal.TaskQueue, durable.BookInput{
		BookID:     b.ID,
		Force:      force,
		EditPasses: s.Workflow.EditPasses,
		Retry:      s.Retry,
	})
	if err != nil {
		return fmt.Errorf("failed to start book workflow: %w", err)
	}
	a.printf("started workflow %s (run %s)\n", run.GetID(), run.GetRunID())

	var res durable.BookResult
	if err := run.Get(cmd.Context(), &res); err != nil {
		return err
	}
	for _, ch := range res.Chapters {
		switch {
		case ch.Error != "":
			a.printf("chapter %d failed: %s\n", ch.Number, ch.Error)
		case ch.Skipped:
			a.printf("chapter %d skipped\n", ch.Number)
		default:
			a.printf("chapter %d: %d words, revision %d\n", ch.Number, ch.Words, ch.Revision)
		}
	}
	a.printStats(res.Manuscript)
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d chapters failed: %v", len(res.Failed), res.Failed)
	}
	return nil
}

func newBookBuildCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Assemble the drafted chapters into a manuscript",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open()
			if err != nil {
				return err
			}
			stats, err := manuscript.Build(p)
			if err != nil {
				return err
			}
			a.printStats(stats)
			return nil
		},
	}
}

func newBookStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the book, its chapters and the last task run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, b, err := a.openBook()
			if err != nil {
				return err
			}
			chapters, err := p.Chapters()
			if err != nil {
				return err
			}
			tasks, err := p.LoadTasks()
			if err != nil && !errors.Is(err, project.ErrNotFound) {
				return err
			}

			words := 0
			for _, ch := range chapters {
				words += ch.WordCount
			}
			a.printf("%s [%s]\n", b.Title, b.Status)
			a.printf("%d/%d chapters, %d/%d words\n\n", len(chapters), b.ChapterCount, words, b.TargetWords())

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tTITLE\tSTATUS\tWORDS\tREVISION")
			for _, ch := range chapters {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", ch.Number, ch.Title, ch.Status, ch.WordCount, ch.Revision)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(tasks) > 0 {
				a.printf("\nlast run:\n")
				tw = tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				for _, t := range tasks {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Name, t.Agent, t.State, t.Error)
				}
				if err := tw.Flush(); err != nil {
					return err
				}
			}
			a.dump(b, tasks)
			return nil
		},
	}
}

func newBookShowCmd(a *app) *cobra.Command {
	var chapter int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Render the manuscript, or one chapter, in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, b, err := a.openBook()
			if err != nil {
				return err
			}
			if chapter > 0 {
				ch, err := p.LoadChapter(chapter)
				if err != nil {
					return err
				}
				return console.Markdown(a.out, fmt.Sprintf("## Chapter %d: %s\n\n%s", ch.Number, ch.Title, ch.Content), renderWidth)
			}

			outline, err := p.LoadOutline()
			if err != nil && !errors.Is(err, project.ErrNotFound) {
				return err
			}
			chapters, err := p.Chapters()
			if err != nil {
				return err
			}
			md, _ := manuscript.Assemble(b, outline, chapters)
			return console.Markdown(a.out, md, renderWidth)
		},
	}
	cmd.Flags().IntVar(&chapter, "chapter", 0, "only show this chapter")
	return cmd
}

func (a *app) printResult(res *workflow.Result) {
	a.printf("written: %s\n", joinInts(res.Written))
	if len(res.Skipped) > 0 {
		a.printf("skipped: %s\n", joinInts(res.Skipped))
	}
	if len(res.Failed) > 0 {
		a.printf("failed:  %s\n", joinInts(res.Failed))
	}
	a.printStats(res.Manuscript)
	a.dump(res.Tasks)
}

func (a *app) printStats(s manuscript.Stats) {
	a.printf("manuscript: %d chapters, %d of %d words\n", s.Chapters, s.Words, s.TargetWords)
	if !s.Complete() {
		a.printf("missing chapters: %s\n", joinInts(s.Missing))
	}
	if s.MarkdownPath != "" {
		a.printf("  %s\n  %s\n", s.MarkdownPath, s.JSONPath)
	}
}

func joinInts(ns []int) string {
	if len(ns) == 0 {
		return "none"
	}
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
