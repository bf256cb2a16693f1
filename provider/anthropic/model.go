package anthropic

import (
	"sync"

	"github.com/alphadose/haxmap"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/provider"
)

// ProviderName is the prefix used in "anthropic/<model>" references.
const ProviderName = "anthropic"

var modelRegistry = haxmap.New[string, api.Model]()

// Model returns the cached Claude model with the given name.
func Model(name string, opts ...option.RequestOption) api.Model {
	m, _ := modelRegistry.GetOrCompute(name, func() api.Model {
		return &model{name: name, opts: opts}
	})
	return m
}

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
