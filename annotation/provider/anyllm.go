package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
)

// AnyLLM completes prompts through any-llm-go's chat completion API. Ollama needs no key and
// defaults to http://localhost:11434.
type AnyLLM struct {
	backend         anyllmlib.Provider
	name            string
	model           string
	temperature     *float64
	maxOutputTokens int
}

// NewAnyLLM builds the backend named by cfg.Backend. Without an API key the provider falls back
// to its usual environment variable (ANTHROPIC_API_KEY, GEMINI_API_KEY, ...).
func NewAnyLLM(cfg Config) (*AnyLLM, error) {
	if cfg.Model == "" {
		return nil, errors.New("anyllm: missing model")
	}
	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}
	name := strings.ToLower(cfg.Backend)
	backend, err := createBackend(name, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", name, err)
	}
	return &AnyLLM{
		backend:         backend,
		name:            name,
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
	}, nil
}

func createBackend(name string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch name {
	case "ollama":
		return ollama.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported backend %q; supported: %s, %s", name, BackendOpenAI, strings.Join(AnyLLMBackends, ", "))
	}
}

func (p *AnyLLM) Complete(ctx context.Context, prompt, responseTemplate string) (string, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(RenderTemplate(responseTemplate, prompt)))
	if err != nil {
		return "", Classify(p.name, fmt.Errorf("anyllm: %s completion: %w", p.name, err))
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("anyllm: empty choices in response")
	}
	return resp.Choices[0].Message.ContentString(), nil
}

func (p *AnyLLM) buildParams(input string) anyllmlib.CompletionParams {
	params := anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleUser, Content: input},
		},
	}
	if p.temperature != nil {
		t := *p.temperature
		params.Temperature = &t
	}
	if p.maxOutputTokens > 0 {
		mt := p.maxOutputTokens
		params.MaxTokens = &mt
	}
	return params
}
