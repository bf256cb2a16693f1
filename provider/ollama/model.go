package ollama

import (
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/provider"
	"github.com/fogfish/opts"
)

// ProviderName is the prefix used in "ollama/<model>" references.
const ProviderName = "ollama"

var modelRegistry = haxmap.New[string, api.Model]()

// Model returns the cached model with the given name.
func Model(name string, options ...opts.Option[Provider]) api.Model {
	m, _ := modelRegistry.GetOrCompute(name, func() api.Model {
		return &model{name: name, opts: options}
	})
	return m
}

type model struct {
	name string
	opts []opts.Option[Provider]

	prov     provider.Provider
	provOnce sync.Once
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Provider() provider.Provider {
	m.provOnce.Do(func() {
		m.prov = New(m.opts...)
	})
	return m.prov
}
