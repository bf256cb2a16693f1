package main

import (
	"fmt"
	"log/slog"

	"github.com/casualjim/bookstart/pkg/tprl"
	"github.com/casualjim/bookstart/workflow/durable"
	"github.com/spf13/cobra"
)

func newWorkerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a Temporal worker for `book generate --durable`",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, b, err := a.openBook()
			if err != nil {
				return err
			}
			s := p.Settings()

			// Temporal retries the activities, so the producer gets one attempt.
			pr, release, err := a.producer(ctx, p, b, true)
			if err != nil {
				return err
			}
			defer release()

			c, err := tprl.NewClient(tprl.Options{Address: s.Temporal.Address, Namespace: s.Temporal.Namespace})
			if err != nil {
				return err
			}
			defer c.Close()

			w := durable.NewWorker(c, s.Temporal.TaskQueue, &durable.Activities{Producer: pr})
			if err := w.Start(); err != nil {
				return fmt.Errorf("failed to start worker: %w", err)
			}
			slog.InfoContext(ctx, "worker started", slog.String("task_queue", s.Temporal.TaskQueue), slog.String("book", b.ID))
			a.printf("worker listening on %q, press ctrl-c to stop\n", s.Temporal.TaskQueue)

			<-ctx.Done()
			w.Stop()
			return nil
		},
	}
}
