package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
)

// OpenAI completes prompts with the Responses API.
type OpenAI struct {
	client          openai.Client
	model           string
	temperature     *float64
	maxOutputTokens int
	schema          map[string]any
	schemaName      string
	waits           transientWaits
}

// transientWaits are the pauses before re-sending a request that hit a rate limit or a server
// error. They are separate from the per-dialogue attempts counted by the caller.
type transientWaits struct {
	rateLimit   []time.Duration
	serverError []time.Duration
}

var defaultWaits = transientWaits{
	rateLimit:   []time.Duration{65 * time.Second, 100 * time.Second},
	serverError: []time.Duration{5 * time.Second, 30 * time.Second},
}

// NewOpenAI builds the OpenAI backend. The SDK's own retries are disabled; rate limits and
// server errors are retried by callWithRetry.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing api key (set OPENAI_API_KEY)")
	}
	if cfg.Model == "" {
		return nil, errors.New("openai: missing model")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	name := cfg.SchemaName
	if name == "" {
		name = "RoleAssignments"
	}
	return &OpenAI{
		client:          openai.NewClient(opts...),
		model:           cfg.Model,
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		schema:          cfg.Schema,
		schemaName:      name,
		waits:           defaultWaits,
	}, nil
}

func (p *OpenAI) Complete(ctx context.Context, prompt, responseTemplate string) (string, error) {
	input := RenderTemplate(responseTemplate, prompt)
	params := responses.ResponseNewParams{
		Model: p.model,
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(input, responses.EasyInputMessageRoleUser),
			},
		},
	}
	if p.maxOutputTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(p.maxOutputTokens))
	}
	if p.temperature != nil {
		params.Temperature = openai.Float(*p.temperature)
	}
	if p.schema != nil {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        p.schemaName,
					Schema:      p.schema,
					Strict:      openai.Bool(true),
					Description: openai.String("Role assignment per utterance"),
					Type:        "json_schema",
				},
			},
		}
	}

	resp, err := p.callWithRetry(ctx, params)
	if err != nil {
		return "", Classify(BackendOpenAI, fmt.Errorf("openai: responses: %w", err))
	}
	return resp.OutputText(), nil
}

// callWithRetry sends params, waiting and re-sending after rate limit and server errors.
func (p *OpenAI) callWithRetry(ctx context.Context, params responses.ResponseNewParams) (*responses.Response, error) {
	var rateLimited, serverErrors int
	for {
		resp, err := p.client.Responses.New(ctx, params)
		if err == nil {
			return resp, nil
		}

		var wait time.Duration
		switch {
		case isRateLimitError(err) && rateLimited < len(p.waits.rateLimit):
			wait = p.waits.rateLimit[rateLimited]
			rateLimited++
		case isServerError(err) && serverErrors < len(p.waits.serverError):
			wait = p.waits.serverError[serverErrors]
			serverErrors++
		default:
			return nil, err
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func statusCode(err error) int {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func isRateLimitError(err error) bool {
	return statusCode(err) == http.StatusTooManyRequests
}

func isServerError(err error) bool {
	return statusCode(err) >= http.StatusInternalServerError
}
