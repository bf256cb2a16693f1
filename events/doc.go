// Package events carries what happens during book production to whoever is
// watching: the terminal, the log, or a message broker.
//
// Two views of the same stream exist. A Hook receives callbacks while agents
// run (prompts, reply chunks, complete replies, progress and errors). Event
// values are the serializable form of those callbacks; they travel over a
// broker topic as JSON objects tagged with a "type" field and are turned back
// into hook calls on the other side.
//
//	hook := events.NewCompositeHook(events.LoggingHook(), printer)
//	hook.OnProgress(ctx, events.Progress{Stage: events.StageDraft, Chapter: 3})
package events
