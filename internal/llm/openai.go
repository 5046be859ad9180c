package llm

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

const providerOpenAI = "openai"

// DefaultOpenAIModel matches the model the pipeline was tuned against.
const DefaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig configures the OpenAI adapter.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // empty means the public OpenAI endpoint
	Model       string
	Temperature float32
}

// OpenAI implements Model on top of the chat completions API.
type OpenAI struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAI creates an OpenAI adapter.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: cfg.Temperature,
	}
}

// Model returns the model identifier used for completions.
func (o *OpenAI) Model() string { return o.model }

// Complete sends the system instruction and input as a two-message chat.
func (o *OpenAI) Complete(ctx context.Context, system, input string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: input},
		},
		Temperature: o.temperature,
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", &ModelCallError{Provider: providerOpenAI, Err: fmt.Errorf("openai api error: %w", err)}
	}
	if len(resp.Choices) == 0 {
		return "", &ModelCallError{Provider: providerOpenAI, Err: ErrEmptyResponse}
	}
	return Finish(providerOpenAI, resp.Choices[0].Message.Content)
}
