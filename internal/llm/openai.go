package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ChatCompleter is the slice of the go-openai client this package uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint.
// Setting a base URL points it at Groq, vLLM, LM Studio and the like.
type OpenAIClient struct {
	api   ChatCompleter
	model string
}

// NewOpenAIClient builds a client for the given endpoint. An empty
// baseURL uses the public OpenAI API.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	return &OpenAIClient{api: openai.NewClientWithConfig(cfg), model: model}
}

// NewOpenAIClientWith wraps an existing ChatCompleter.
func NewOpenAIClientWith(api ChatCompleter, model string) *OpenAIClient {
	return &OpenAIClient{api: api, model: model}
}

// Name returns the provider name.
func (c *OpenAIClient) Name() string { return ProviderOpenAI }

// Complete sends a chat completion request.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := req.Model
	if model == "" || strings.Contains(model, "/") {
		model = c.model
	}

	msgs := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		msgs = append(msgs, openai.ChatCompletionMessage{Role: chatRole(m.Role), Content: m.Content})
	}

	creq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		creq.Temperature = float32(*req.Temperature)
	}

	resp, err := c.api.CreateChatCompletion(ctx, creq)
	if err != nil {
		return nil, providerError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProviderError{Provider: ProviderOpenAI, Message: "no choices in response"}
	}

	choice := resp.Choices[0]
	out := &CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Model:      resp.Model,
		Usage: Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Duration: time.Since(start),
	}
	if out.Model == "" {
		out.Model = model
	}
	return out, nil
}

func chatRole(role string) string {
	switch role {
	case RoleSystem:
		return openai.ChatMessageRoleSystem
	case RoleAssistant:
		return openai.ChatMessageRoleAssistant
	default:
		return openai.ChatMessageRoleUser
	}
}

// providerError maps go-openai failures onto ProviderError so failover
// can inspect the HTTP status.
func providerError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ProviderError{Provider: ProviderOpenAI, Code: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ProviderError{Provider: ProviderOpenAI, Code: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ProviderError{Provider: ProviderOpenAI, Message: fmt.Sprintf("request failed: %v", err)}
}
