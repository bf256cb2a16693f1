// Package api declares the contracts shared by agents, models and the
// executor so none of them has to import the others.
package api

import "github.com/casualjim/bookstart/types"

// Agent is a named role bound to a model with an instruction template.
type Agent interface {
	// Name identifies the agent in logs, events and the registry.
	Name() string

	// Model the agent talks to.
	Model() Model

	// Instructions returns the raw instruction template.
	Instructions() string

	// RenderInstructions executes the instruction template with the given
	// variables. A variable the template references but cv lacks is an error.
	RenderInstructions(types.ContextVars) (string, error)
}
