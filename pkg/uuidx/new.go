package uuidx

import (
	"strings"

	"github.com/google/uuid"
)

// New generates a time ordered (version 7) UUID and panics if the generator fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString is New rendered as a string.
func NewString() string {
	return New().String()
}

// Short returns the last 8 hex characters (random bits) of a fresh UUID. Good enough for
// human facing ids like comment numbers, never for anything that must be unique
// across projects.
func Short() string {
	return strings.ReplaceAll(NewString(), "-", "")[24:]
}

// Parse parses s and returns uuid.Nil when s is empty.
func Parse(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
