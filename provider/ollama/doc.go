// Package ollama implements provider.Provider for a local Ollama daemon.
//
// Requests go to the generate endpoint. The conversation thread is flattened
// into a single prompt of role-labelled turns and the agent instructions are
// sent as the system prompt. Structured output passes the JSON schema in the
// "format" field. Streaming replies are read as newline delimited JSON until a
// line with "done": true arrives.
//
//	prov := ollama.New(ollama.WithBaseURL("http://localhost:11434"))
//	model := ollama.Model("llama3", ollama.WithBaseURL(host))
package ollama
