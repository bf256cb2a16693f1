// Package book holds the data model of a generated book: the book itself, its
// outline, chapters, research notes, editor reports, comments and collaborators.
//
// Everything in here is a plain struct that serializes to JSON. Validation uses
// struct tags understood by go-playground/validator.
package book
