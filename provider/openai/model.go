package openai

import (
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/provider"
	"github.com/openai/openai-go/option"
)

// ProviderName is the prefix used in "openai/<model>" references.
const ProviderName = "openai"

var modelRegistry = haxmap.New[string, api.Model]()

// Model returns the cached model with the given name, creating it with opts on
// first use.
func Model(name string, opts ...option.RequestOption) api.Model {
	m, _ := modelRegistry.GetOrCompute(name, func() api.Model {
		return &model{
			name: name,
			opts: opts,
		}
	})
	return m
}

var _ api.Model = (*model)(nil)

type model struct {
	name string
	opts []option.RequestOption

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
