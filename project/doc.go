// Package project owns the on-disk layout of a book project.
//
// A project is a directory with a book.yaml settings file at its root and a
// fixed set of folders:
//
//	drafts/      chapters as markdown with a YAML front matter header
//	outline/     outline.json and a rendered outline.md
//	notes/       collaborators and comments
//	research/    research notes as markdown
//	edits/       editor reports, one JSON file per chapter and pass
//	exports/     assembled manuscripts
//	.bookstart/  runtime state such as the task snapshot
//
// All writes go through a temp file and a rename so a crash never leaves a
// half written file behind.
package project
