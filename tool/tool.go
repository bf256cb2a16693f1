// Package tool is the registry of project tools: small named commands that
// inspect or export a project, run from the command line with key=value
// arguments.
package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/casualjim/bookstart/pkg/stdx"
	"github.com/casualjim/bookstart/project"
	"github.com/casualjim/bookstart/provider"
	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Env is what a tool can work with.
type Env struct {
	Project *project.Project
	// Models lists the models of the configured provider; nil when the
	// provider can't enumerate them.
	Models provider.ModelLister
}

// Func is the implementation of a tool. The returned text is printed as is.
type Func func(ctx context.Context, env Env, args Args) (string, error)

// Definition describes a tool: its name, what it does, the parameters it
// accepts (in documentation order) and the function itself.
type Definition struct {
	Name        string
	Description string
	Parameters  *orderedmap.OrderedMap[string, string]
	Function    Func
}

// Option configures a Definition.
type Option = opts.Option[Definition]

var (
	// Name sets the tool name.
	Name = opts.ForName[Definition, string]("Name")
	// Description sets the one line description.
	Description = opts.ForName[Definition, string]("Description")
)

// Parameter documents a key=value argument. Parameters are listed in the order
// they are declared.
func Parameter(name, doc string) Option {
	return opts.Type[Definition](func(d *Definition) error {
		if name == "" {
			return errors.New("parameter name is required")
		}
		d.Parameters.Set(name, doc)
		return nil
	})
}

// New creates a definition for fn.
func New(fn Func, options ...Option) (Definition, error) {
	if fn == nil {
		return Definition{}, errors.New("tool function is required")
	}
	def := Definition{Parameters: orderedmap.New[string, string]()}
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		return Definition{}, errors.New("tool name is required")
	}
	def.Function = fn
	return def, nil
}

// Must is New for definitions that are known to be valid.
func Must(fn Func, options ...Option) Definition {
	return stdx.Must1(New(fn, options...))
}

// Schema describes the arguments as a JSON schema object with one string
// property per parameter.
func (d Definition) Schema() *jsonschema.Schema {
	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: orderedmap.New[string, *jsonschema.Schema](),
	}
	for pair := d.Parameters.Oldest(); pair != nil; pair = pair.Next() {
		schema.Properties.Set(pair.Key, &jsonschema.Schema{Type: "string", Description: pair.Value})
	}
	return schema
}

// Validate rejects arguments the tool does not declare.
func (d Definition) Validate(args Args) error {
	for key := range args {
		if _, ok := d.Parameters.Get(key); !ok {
			return fmt.Errorf("%s: unknown argument %q", d.Name, key)
		}
	}
	return nil
}
