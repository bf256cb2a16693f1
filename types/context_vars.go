// Package types holds small value types shared by agents and the executor.
package types

import (
	"maps"

	"github.com/goccy/go-json"
)

// ContextVars are the values an agent's instruction template is rendered with.
//
//	vars := types.ContextVars{
//	    "title": "Harbour Lights",
//	    "chapter": map[string]any{"number": 3, "title": "Low Tide"},
//	}
//
// The map is not safe for concurrent modification; the executor clones it
// before every run.
type ContextVars map[string]any

// String renders the variables as JSON, or "" when they can't be encoded.
func (cv ContextVars) String() string {
	jsonData, err := json.Marshal(cv)
	if err != nil {
		return ""
	}
	return string(jsonData)
}

// Merge returns a copy of cv overlaid with others, later maps winning.
func (cv ContextVars) Merge(others ...ContextVars) ContextVars {
	out := make(ContextVars, len(cv))
	maps.Copy(out, cv)
	for _, o := range others {
		maps.Copy(out, o)
	}
	return out
}

// Clone is a shallow copy; nil stays nil.
func (cv ContextVars) Clone() ContextVars {
	return maps.Clone(cv)
}
