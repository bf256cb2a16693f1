// Package natsx connects to the NATS server that carries progress events.
package natsx

import (
	"github.com/nats-io/nats.go"
)

// ClientName identifies bookstart connections on the server.
const ClientName = "bookstart"

// NewClient connects to url with compression enabled. An empty url means
// nats.DefaultURL. Extra options are applied after the defaults.
func NewClient(url string, opts ...nats.Option) (*nats.Conn, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	defaults := []nats.Option{nats.Name(ClientName), nats.Compression(true)}
	return nats.Connect(url, append(defaults, opts...)...)
}
