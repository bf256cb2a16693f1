// Package models resolves model references such as "ollama/llama3" or a bare
// "gpt-4o-mini" into cached api.Model values.
package models

import (
	"errors"
	"fmt"
	"strings"

	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/casualjim/bookstart/api"
	"github.com/casualjim/bookstart/internal/registry"
	"github.com/casualjim/bookstart/provider/anthropic"
	"github.com/casualjim/bookstart/provider/ollama"
	"github.com/casualjim/bookstart/provider/openai"
	ooption "github.com/openai/openai-go/option"
)

// ErrUnknownProvider is returned for a reference naming a provider that isn't
// compiled in.
var ErrUnknownProvider = errors.New("unknown provider")

var Global = registry.New[api.Model]()

func Add(model api.Model) {
	Global.Add(model.Name(), model)
}

func Get(name string) (api.Model, bool) {
	return Global.Get(name)
}

func GetOrAdd(name string, modelF func() api.Model) api.Model {
	m, _ := Global.GetOrAdd(name, modelF)
	return m
}

func Del(name string) {
	Global.Del(name)
}

// Settings carries the connection details used when a model is first created.
type Settings struct {
	// DefaultProvider is used for references without a "provider/" prefix.
	DefaultProvider string
	// BaseURL overrides the endpoint of the default provider.
	BaseURL         string
	OllamaHost      string
	OpenAIAPIKey    string
	AnthropicAPIKey string
}

// Split breaks a reference into provider and model name. Ollama tags such as
// "llama3:8b" contain no slash and are kept whole.
func Split(ref, defaultProvider string) (string, string) {
	prov, name, found := strings.Cut(ref, "/")
	if !found {
		return defaultProvider, ref
	}
	switch prov {
	case ollama.ProviderName, openai.ProviderName, anthropic.ProviderName:
		return prov, name
	default:
		// e.g. "library/llama3" pulled from a registry namespace
		return defaultProvider, ref
	}
}

// Resolve returns the model for ref, registering it under its qualified
// "provider/model" name on first use.
func Resolve(ref string, settings Settings) (api.Model, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, errors.New("model reference is required")
	}
	defaultProvider := settings.DefaultProvider
	if defaultProvider == "" {
		defaultProvider = ollama.ProviderName
	}
	prov, name := Split(ref, defaultProvider)
	key := prov + "/" + name
	if m, ok := Get(key); ok {
		return m, nil
	}

	baseURL := func(p string) string {
		if p == defaultProvider {
			return settings.BaseURL
		}
		return ""
	}

	var m api.Model
	switch prov {
	case ollama.ProviderName:
		host := baseURL(prov)
		if host == "" {
			host = settings.OllamaHost
		}
		if host == "" {
			m = ollama.Model(name)
		} else {
			m = ollama.Model(name, ollama.WithBaseURL(host))
		}
	case openai.ProviderName:
		var opts []ooption.RequestOption
		if settings.OpenAIAPIKey != "" {
			opts = append(opts, ooption.WithAPIKey(settings.OpenAIAPIKey))
		}
		if u := baseURL(prov); u != "" {
			opts = append(opts, ooption.WithBaseURL(u))
		}
		m = openai.Model(name, opts...)
	case anthropic.ProviderName:
		var opts []aoption.RequestOption
		if settings.AnthropicAPIKey != "" {
			opts = append(opts, aoption.WithAPIKey(settings.AnthropicAPIKey))
		}
		if u := baseURL(prov); u != "" {
			opts = append(opts, aoption.WithBaseURL(u))
		}
		m = anthropic.Model(name, opts...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, prov)
	}

	return GetOrAdd(key, func() api.Model { return m }), nil
}
