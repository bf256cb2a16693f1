// Package config loads the book.yaml settings of a project and applies the
// environment overrides on top.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/casualjim/bookstart/internal/retry"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// FileName is the settings file at the root of every project.
const FileName = "book.yaml"

// Provider names accepted in llm.provider.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

type LLM struct {
	Provider    string  `yaml:"provider" validate:"oneof=ollama openai anthropic"`
	Model       string  `yaml:"model" validate:"required"`
	Temperature float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	BaseURL     string  `yaml:"base_url,omitempty" validate:"omitempty,url"`
	MaxTokens   int     `yaml:"max_tokens,omitempty" validate:"gte=0"`

	// Secrets only come from the environment.
	OpenAIAPIKey    string `yaml:"-"`
	AnthropicAPIKey string `yaml:"-"`
	OllamaHost      string `yaml:"-"`
}

type Workflow struct {
	Concurrency      int     `yaml:"concurrency" validate:"gte=1,lte=32"`
	EditPasses       int     `yaml:"edit_passes" validate:"gte=0,lte=10"`
	MinWordRatio     float64 `yaml:"min_word_ratio" validate:"gte=0,lte=1"`
	MaxContinuations int     `yaml:"max_continuations" validate:"gte=0,lte=10"`
	ApproveScore     int     `yaml:"approve_score" validate:"gte=0,lte=10"`
}

type Broker struct {
	NATSURL       string `yaml:"nats_url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix" validate:"required"`
}

type Temporal struct {
	Address   string `yaml:"address,omitempty"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue" validate:"required"`
}

type Log struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
}

// Config is the content of book.yaml.
type Config struct {
	LLM      LLM          `yaml:"llm"`
	Workflow Workflow     `yaml:"workflow"`
	Retry    retry.Policy `yaml:"retry"`
	Broker   Broker       `yaml:"broker"`
	Temporal Temporal     `yaml:"temporal"`
	Log      Log          `yaml:"log"`
}

// Default returns the settings a fresh project starts with.
func Default() Config {
	return Config{
		LLM: LLM{
			Provider:    ProviderOllama,
			Model:       "llama3",
			Temperature: 0.7,
		},
		Workflow: Workflow{
			Concurrency:      2,
			EditPasses:       1,
			MinWordRatio:     0.8,
			MaxContinuations: 2,
			ApproveScore:     7,
		},
		Retry: retry.DefaultPolicy(),
		Broker: Broker{
			SubjectPrefix: "bookstart",
		},
		Temporal: Temporal{
			Namespace: "default",
			TaskQueue: "bookstart",
		},
		Log: Log{Level: "info"},
	}
}

var validate = validator.New()

// Validate checks every section against its rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Decode reads YAML over the defaults. Unknown keys are an error so typos
// don't silently fall back to defaults.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return cfg, nil
}

// Load reads path, applies the process environment and validates the result.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Marshal renders the config as YAML with a short header.
func (c Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# bookstart project settings\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ApplyEnv overrides settings from environment variables:
//
//	BOOKSTART_PROVIDER  llm.provider
//	BOOKSTART_MODEL     llm.model
//	OLLAMA_HOST         ollama endpoint
//	OPENAI_API_KEY      openai key
//	ANTHROPIC_API_KEY   anthropic key
//	NATS_URL            broker.nats_url
//	TEMPORAL_ADDRESS    temporal.address
//	BOOKSTART_LOG_LEVEL log.level
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("BOOKSTART_PROVIDER", &c.LLM.Provider)
	str("BOOKSTART_MODEL", &c.LLM.Model)
	str("OLLAMA_HOST", &c.LLM.OllamaHost)
	str("OPENAI_API_KEY", &c.LLM.OpenAIAPIKey)
	str("ANTHROPIC_API_KEY", &c.LLM.AnthropicAPIKey)
	str("NATS_URL", &c.Broker.NATSURL)
	str("TEMPORAL_ADDRESS", &c.Temporal.Address)
	str("BOOKSTART_LOG_LEVEL", &c.Log.Level)
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.LLM.Provider = strings.ToLower(c.LLM.Provider)

	if v, ok := lookup("BOOKSTART_TEMPERATURE"); ok && v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("BOOKSTART_TEMPERATURE: %w", err)
		}
		c.LLM.Temperature = t
	}
	if c.LLM.OllamaHost != "" && !strings.Contains(c.LLM.OllamaHost, "://") {
		c.LLM.OllamaHost = "http://" + c.LLM.OllamaHost
	}
	return nil
}

// ModelRef is the qualified "provider/model" name of the configured model.
func (c *Config) ModelRef() string {
	return c.LLM.Provider + "/" + c.LLM.Model
}
