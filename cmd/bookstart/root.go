package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "bookstart",
		Short: "Write books with a team of language model agents",
		Long: `bookstart turns a theme into a manuscript: an outliner plans the chapters,
a writer drafts them in parallel, an editor reviews every draft and the
writer revises until the editor approves.

Projects are plain folders; run "bookstart init" to create one.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setupLogging,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.projectDir, "project", "C", ".", "project directory")
	flags.StringVar(&a.logLevel, "log-level", defaultLogLevel(), "log level (debug, info, warn, error)")
	flags.BoolVar(&a.stream, "stream", false, "print agent output while it is generated")
	flags.BoolVar(&a.debug, "debug", false, "dump internal state")

	root.AddCommand(
		newInitCmd(a),
		newBookCmd(a),
		newResearchCmd(a),
		newCollabCmd(a),
		newToolsCmd(a),
		newWorkerCmd(a),
		newWatchCmd(a),
	)
	return root
}
