package main

import (
	"errors"

	"github.com/casualjim/bookstart/internal/broker"
	"github.com/casualjim/bookstart/internal/console"
	"github.com/casualjim/bookstart/pkg/natsx"
	"github.com/spf13/cobra"
)

func newWatchCmd(a *app) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the progress events published on NATS",
		Long: `watch subscribes to the book's NATS subject and prints every progress
event, so a run in another terminal or on a worker can be followed live.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, b, err := a.openBook()
			if err != nil {
				return err
			}
			url := p.Settings().Broker.NATSURL
			if url == "" {
				return errors.New("broker.nats_url is not set (book.yaml or NATS_URL)")
			}

			conn, err := natsx.NewClient(url)
			if err != nil {
				return err
			}
			defer conn.Close()

			id := b.ID
			if all {
				id = broker.AllBooks
			}
			prefix := p.Settings().Broker.SubjectPrefix
			topic := broker.NATS(conn, prefix).Topic(ctx, id)
			sub, err := topic.Subscribe(ctx, console.NewPrinter(a.out, a.stream))
			if err != nil {
				return err
			}
			defer sub.Unsubscribe()

			a.printf("watching %s\n", broker.Subject(prefix, id))
			<-ctx.Done()
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "watch every book published under the subject prefix")
	return cmd
}
