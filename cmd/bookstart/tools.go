package main

import (
	"fmt"
	"strings"

	"github.com/casualjim/bookstart/tool"
	"github.com/spf13/cobra"
)

func newToolsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List and run project tools",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the available tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, def := range tool.NewManager().List() {
				a.printf("%s\n    %s\n", def.Name, def.Description)
				for pair := def.Parameters.Oldest(); pair != nil; pair = pair.Next() {
					a.printf("    %s: %s\n", pair.Key, pair.Value)
				}
			}
			return nil
		},
	}

	run := &cobra.Command{
		Use:   "run <name> [key=value...]",
		Short: "Run a tool against the project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := tool.ParseArgs(args[1:])
			if err != nil {
				return err
			}
			p, err := a.open()
			if err != nil {
				return err
			}
			out, err := tool.NewManager().Run(cmd.Context(), tool.Env{Project: p, Models: a.modelLister(p)}, args[0], toolArgs)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			a.printf("%s\n", strings.TrimRight(out, "\n"))
			return nil
		},
	}

	cmd.AddCommand(list, run)
	return cmd
}
