package agent

import (
	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/internal/registry"
)

// registered holds the agents of the last team built per role name, so an
// agent can be found from the sender name carried on events.
var registered = registry.New[api.Agent]()

func Add(agent api.Agent) {
	registered.Add(agent.Name(), agent)
}

func Get(name string) (api.Agent, bool) {
	return registered.Get(name)
}

// Names lists the registered agents in lexical order.
func Names() []string {
	return registered.Names()
}
