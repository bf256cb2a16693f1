// Package messages defines the conversation messages exchanged between the
// book-production agents and the language model providers.
//
// A Message wraps a typed payload (a user prompt, an assistant reply or the
// rendered instructions) together with the run and turn it belongs to, the
// sender and a timestamp. Messages serialize to a flat JSON object tagged with
// a "type" field so a thread can be persisted and read back without losing the
// payload type:
//
//	{"type":"user","run_id":"...","turn_id":"...","sender":"writer","content":"Write chapter 3"}
//
// Messages are usually created through the builder:
//
//	msg := messages.New().WithSender("editor").UserPrompt("Review chapter 2")
package messages
