package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/casualjim/bookstart/book"
	"github.com/casualjim/bookstart/manuscript"
)

// Builtins are the tools every manager starts with.
func Builtins() []Definition {
	return []Definition{
		Must(wordCount,
			Name("word_count"),
			Description("Count the words of every drafted chapter against the target"),
			Parameter("chapter", "only this chapter number"),
		),
		Must(showOutline,
			Name("outline"),
			Description("Print the outline as markdown"),
		),
		Must(listChapters,
			Name("chapters"),
			Description("List drafted chapters with status and revision"),
			Parameter("status", "only chapters in this status"),
		),
		Must(export,
			Name("export"),
			Description("Assemble the manuscript into exports/"),
		),
		Must(ollamaModels,
			Name("ollama_models"),
			Description("List the models installed on the Ollama daemon"),
		),
	}
}

func requireProject(env Env) error {
	if env.Project == nil {
		return errors.New("this tool needs a project")
	}
	return nil
}

func wordCount(_ context.Context, env Env, args Args) (string, error) {
	if err := requireProject(env); err != nil {
		return "", err
	}
	only, err := args.Int("chapter", 0)
	if err != nil {
		return "", err
	}
	b, err := env.Project.LoadBook()
	if err != nil {
		return "", err
	}
	chapters, err := env.Project.Chapters()
	if err != nil {
		return "", err
	}

	var out strings.Builder
	tw := tabwriter.NewWriter(&out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHAPTER\tWORDS\tTARGET")
	total := 0
	for _, c := range chapters {
		if only > 0 && c.Number != only {
			continue
		}
		total += c.WordCount
		fmt.Fprintf(tw, "%d\t%d\t%d\n", c.Number, c.WordCount, b.WordsPerChapter)
	}
	if only == 0 {
		fmt.Fprintf(tw, "total\t%d\t%d\n", total, b.TargetWords())
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func showOutline(_ context.Context, env Env, _ Args) (string, error) {
	if err := requireProject(env); err != nil {
		return "", err
	}
	o, err := env.Project.LoadOutline()
	if err != nil {
		return "", err
	}
	return o.Markdown(), nil
}

func listChapters(_ context.Context, env Env, args Args) (string, error) {
	if err := requireProject(env); err != nil {
		return "", err
	}
	status := book.ChapterStatus(strings.ToLower(args.String("status", "")))
	chapters, err := env.Project.Chapters()
	if err != nil {
		return "", err
	}

	var out strings.Builder
	tw := tabwriter.NewWriter(&out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTITLE\tSTATUS\tREVISION\tWORDS")
	for _, c := range chapters {
		if status != "" && c.Status != status {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\n", c.Number, c.Title, c.Status, c.Revision, c.WordCount)
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func export(_ context.Context, env Env, _ Args) (string, error) {
	if err := requireProject(env); err != nil {
		return "", err
	}
	stats, err := manuscript.Build(env.Project)
	if err != nil {
		return "", err
	}
	msg := fmt.Sprintf("%d chapters, %d words\n%s\n%s\n", stats.Chapters, stats.Words, stats.MarkdownPath, stats.JSONPath)
	if !stats.Complete() {
		msg += fmt.Sprintf("missing chapters: %v\n", stats.Missing)
	}
	return msg, nil
}

func ollamaModels(ctx context.Context, env Env, _ Args) (string, error) {
	if env.Models == nil {
		return "", errors.New("the configured provider can't list models")
	}
	models, err := env.Models.ListModels(ctx)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, m := range models {
		fmt.Fprintf(&out, "%s\t%s\t%d MB\n", m.Name, m.Family, m.Size/(1<<20))
	}
	return out.String(), nil
}
