package main

import (
	"github.com/casualjim/bookstart/internal/config"
	"github.com/casualjim/bookstart/project"
	"github.com/spf13/cobra"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a project folder with default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := a.projectDir
			if len(args) == 1 {
				dir = args[0]
			}
			p, err := project.Init(dir, config.Default())
			if err != nil {
				return err
			}
			a.printf("initialized project in %s\n", p.Root())
			a.printf("edit %s to pick a model, then run `bookstart book create`\n", p.Path(config.FileName))
			return nil
		},
	}
}
