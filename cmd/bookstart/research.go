package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/casualjim/bookstart/internal/console"
	"github.com/spf13/cobra"
)

func newResearchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Collect background notes the writer can draw on",
	}

	add := &cobra.Command{
		Use:   "add <topic>",
		Short: "Have the researcher write notes on a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, b, err := a.openBook()
			if err != nil {
				return err
			}
			pr, release, err := a.producer(cmd.Context(), p, b, false)
			if err != nil {
				return err
			}
			defer release()

			r, err := pr.Research(cmd.Context(), b, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if err := console.Markdown(a.out, "# "+r.Topic+"\n\n"+r.Notes, renderWidth); err != nil {
				return err
			}
			a.printf("keywords: %s\n", strings.Join(r.Keywords, ", "))
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the research topics of the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.open()
			if err != nil {
				return err
			}
			topics, err := p.Research()
			if err != nil {
				return err
			}
			if len(topics) == 0 {
				a.printf("no research yet\n")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SLUG\tTOPIC\tKEYWORDS")
			for _, r := range topics {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Slug, r.Topic, strings.Join(r.Keywords, ", "))
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
