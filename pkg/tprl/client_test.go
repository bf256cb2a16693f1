package tprl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientIsLazy(t *testing.T) {
	// nothing listens on this port; a lazy client must still be created
	cl, err := NewClient(Options{Address: "127.0.0.1:1", Namespace: "books"})
	require.NoError(t, err)
	assert.NotNil(t, cl)
	cl.Close()
}
