// Package shorttermmemory keeps the conversation thread of a single agent call
// together with the token usage it accumulated.
//
// A thread is forked before a run so that a failed attempt can be discarded,
// and joined back once the run produced a reply. Checkpoints capture the
// messages and usage of a thread at a point in time and can be merged into
// another thread.
package shorttermmemory
