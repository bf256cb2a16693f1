// Package agent builds the language model agents used to write a book and
// keeps a registry of them by name.
package agent

import (
	"strings"
	"text/template"

	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/provider/ollama"
	"github.com/casualjim/bookstart/types"
	"github.com/fogfish/opts"
)

var _ api.Agent = (*defaultAgent)(nil)

type defaultAgent struct {
	name         string
	model        api.Model
	instructions string
}

func (a *defaultAgent) Name() string {
	return a.name
}

func (a *defaultAgent) Model() api.Model {
	return a.model
}

func (a *defaultAgent) Instructions() string {
	return a.instructions
}

// RenderInstructions executes the instructions as a text/template. A key the
// template uses but cv doesn't have fails the render.
func (a *defaultAgent) RenderInstructions(cv types.ContextVars) (string, error) {
	if !strings.Contains(a.instructions, "{{") {
		return a.instructions, nil
	}
	return renderTemplate(a.name, a.instructions, cv)
}

func renderTemplate(name, templateStr string, cv types.ContextVars) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", err
	}

	if cv == nil {
		cv = types.ContextVars{}
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, cv); err != nil {
		return "", err
	}

	return strings.TrimSpace(buf.String()), nil
}

var (
	Name         = opts.ForName[defaultAgent, string]("name")
	Model        = opts.ForName[defaultAgent, api.Model]("model")
	Instructions = opts.ForName[defaultAgent, string]("instructions")
)

// DefaultModel is used by agents created without a Model option.
const DefaultModel = "llama3"

// New creates an agent; without a Model option it talks to the local Ollama
// DefaultModel.
func New(options ...opts.Option[defaultAgent]) api.Agent {
	agent := &defaultAgent{}
	if err := opts.Apply(agent, options); err != nil {
		panic(err)
	}
	if agent.model == nil {
		agent.model = ollama.Model(DefaultModel)
	}
	return agent
}
