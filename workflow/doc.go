// Package workflow produces a book: it generates the outline, fans chapter
// work out to a bounded task queue, runs the editor over every draft and
// assembles the manuscript. Every step is persisted to the project before
// the next one starts, so an interrupted run picks up where it stopped.
//
// The durable subpackage runs the same stages as Temporal activities.
package workflow
