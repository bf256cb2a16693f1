/*
Package bookstart writes book manuscripts with language model agents.

The root package is the single entry point for talking to an agent: Call sends
a prompt to an agent and decodes the reply into the requested type.

	writer, _ := agent.ForRole(agent.RoleWriter, ollama.Model("llama3"))
	text, err := bookstart.Call[string](ctx, writer, "Write chapter one.",
	    bookstart.WithContextVars(types.ContextVars{"book": b}),
	    bookstart.Streaming(true),
	)

Structured replies are requested with StructuredOutput; the JSON schema is
reflected from the Go type:

	outline, err := bookstart.Call[book.Outline](ctx, outliner, prompt,
	    bookstart.WithContextVars(vars),
	    bookstart.StructuredOutput[book.Outline]("outline", "chapter plan"),
	)

# Architecture

  - agent: agent construction and the outliner, writer, editor and researcher roles
  - provider: Ollama, OpenAI and Anthropic backends
  - workflow: the book production pipeline, locally or as a Temporal workflow
  - project: the on-disk project folder
  - manuscript: assembling chapters into an exported manuscript
  - events and internal/broker: progress reporting, in process or over NATS

# Thread Safety

Agents and models can be shared across goroutines. A thread passed with
WithThread must not be used by two calls at once.
*/
package bookstart
