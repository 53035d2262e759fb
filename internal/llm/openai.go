package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
)

const (
	// DefaultModel is the chat model used when none is configured.
	DefaultModel = "gpt-4o"
	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 120 * time.Second

	jsonTemperature  = 0.3
	proseTemperature = 0.4
)

// OpenAIClient is the Client backed by the OpenAI chat completions API.
// Any OpenAI compatible endpoint can be targeted with WithBaseURL.
type OpenAIClient struct {
	client  openai.Client
	model   string
	timeout time.Duration
}

type openAIOptions struct {
	model   string
	baseURL string
	timeout time.Duration
}

// Option configures an OpenAIClient.
type Option func(*openAIOptions)

// WithModel sets the chat model.
func WithModel(model string) Option {
	return func(o *openAIOptions) {
		if model != "" {
			o.model = model
		}
	}
}

// WithBaseURL points the client at a different API endpoint.
func WithBaseURL(url string) Option {
	return func(o *openAIOptions) {
		o.baseURL = url
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *openAIOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// NewOpenAIClient creates a client for the given API key.
// The SDK's own retries are disabled; a failed call is reported as is.
func NewOpenAIClient(apiKey string, opts ...Option) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	o := openAIOptions{model: DefaultModel, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if o.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(o.baseURL))
	}

	return &OpenAIClient{
		client:  openai.NewClient(reqOpts...),
		model:   o.model,
		timeout: o.timeout,
	}, nil
}

// Model returns the configured chat model.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends one chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(proseTemperature),
	}
	if jsonMode {
		params.Temperature = openai.Float(jsonTemperature)
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return "", ErrNoChoices
	}
	return completion.Choices[0].Message.Content, nil
}

var _ Client = (*OpenAIClient)(nil)
