package provider

import (
	"context"
	"time"

	"github.com/casualjim/bookstart/internal/shorttermmemory"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

// Provider is a language model backend (Ollama, OpenAI, Anthropic).
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (<-chan StreamEvent, error)
}

// ModelLister is implemented by providers that can enumerate their models.
type ModelLister interface {
	ListModels(context.Context) ([]ModelInfo, error)
}

// ModelInfo describes a model available on a provider.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size,omitempty"`
	Family     string    `json:"family,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}

// CompletionParams is a single request for a model turn.
type CompletionParams struct {
	// RunID identifies the agent run the turn belongs to.
	RunID uuid.UUID

	// Instructions are the rendered system instructions of the agent.
	Instructions string

	// Thread holds the conversation so far. Providers only read it.
	Thread *shorttermmemory.Aggregator

	// Stream asks for Chunk events while the reply is generated.
	Stream bool

	// ResponseSchema constrains the reply to a JSON document.
	ResponseSchema *StructuredOutput

	Model interface {
		Name() string
		Provider() Provider
	}

	// Temperature of the sampler. Nil means the provider default; zero is
	// sent as is.
	Temperature *float64

	// MaxTokens caps the length of the reply. Zero means the provider default.
	MaxTokens int

	_ struct{}
}

// StructuredOutput is a named JSON schema the reply must follow.
type StructuredOutput struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}
