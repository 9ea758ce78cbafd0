// Package provider is the boundary to generative model backends. Every backend takes a rendered
// prompt and returns the raw model text; failures that mean the backend cannot be reached are
// classified as ErrUnavailable so callers can stop instead of retrying.
package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Completer sends one prompt to a model.
type Completer interface {
	// Complete renders responseTemplate around prompt and returns the model's text.
	Complete(ctx context.Context, prompt, responseTemplate string) (string, error)
}

// QuestionPlaceholder is replaced by the prompt in a response template.
const QuestionPlaceholder = "{question}"

// RenderTemplate substitutes prompt into tmpl. An empty template yields the prompt alone.
func RenderTemplate(tmpl, prompt string) string {
	if tmpl == "" {
		return prompt
	}
	return strings.ReplaceAll(tmpl, QuestionPlaceholder, prompt)
}

const (
	BackendOpenAI = "openai"
	BackendOllama = "ollama"
)

// AnyLLMBackends are the backend names served through any-llm-go.
var AnyLLMBackends = []string{"ollama", "anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// Config selects and configures a backend. It is built once by the caller and passed to New.
type Config struct {
	Backend string
	Model   string
	APIKey  string
	BaseURL string

	// Temperature is passed through when set.
	Temperature *float64

	// MaxOutputTokens caps the response length; 0 leaves the backend default.
	MaxOutputTokens int

	// Schema, when non-nil, asks the OpenAI backend for strict JSON schema output.
	Schema     map[string]any
	SchemaName string
}

func (c Config) Validate() error {
	if c.Backend == "" {
		return errors.New("provider: missing backend")
	}
	if c.Model == "" {
		return errors.New("provider: missing model")
	}
	if c.MaxOutputTokens < 0 {
		return errors.New("provider: max output tokens must be >= 0")
	}
	if c.Schema != nil && !strings.EqualFold(c.Backend, BackendOpenAI) {
		return fmt.Errorf("provider: structured output is only supported by the %s backend", BackendOpenAI)
	}
	return nil
}

// New returns the Completer for cfg.Backend.
func New(cfg Config) (Completer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if strings.EqualFold(cfg.Backend, BackendOpenAI) {
		return NewOpenAI(cfg)
	}
	return NewAnyLLM(cfg)
}
