// Package tprl creates Temporal clients for the durable book workflow.
package tprl

import (
	"fmt"
	"log/slog"

	"github.com/casualjim/bookstart/pkg/slogx"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/log"
)

// Options select the Temporal frontend to talk to.
type Options struct {
	Address   string
	Namespace string
}

// NewClient creates a lazy client: no connection is made until the first
// call. An empty address means the SDK default (localhost:7233).
func NewClient(opts Options) (client.Client, error) {
	lg := slog.Default().With(slogx.LoggerName("bookstart.temporal"))

	hostPort := opts.Address
	if hostPort == "" {
		hostPort = client.DefaultHostPort
	}
	cl, err := client.NewLazyClient(client.Options{
		HostPort:  hostPort,
		Namespace: opts.Namespace,
		Logger:    log.NewStructuredLogger(lg),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create temporal client: %w", err)
	}
	return cl, nil
}
