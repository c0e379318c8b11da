package llm

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/awnumar/memguard"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// DefaultRequestsPerMinute is the client-side rate cap for adaptation calls.
// Branch adaptations are user-triggered and rare; the cap exists so a
// misbehaving caller cannot burn quota.
const DefaultRequestsPerMinute = 20

type OpenAIClient struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
}

func NewOpenAIClient() (*OpenAIClient, error) {
	key, err := loadAPIKey()
	if err != nil {
		return nil, err
	}
	defer key.Destroy()

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
		slog.Warn("OPENAI_MODEL not set, defaulting to gpt-4o-mini")
	}
	slog.Info("Initializing OpenAI adaptation client", "model", model)
	return &OpenAIClient{
		client:  openai.NewClient(key.String()),
		model:   model,
		limiter: rate.NewLimiter(rate.Limit(DefaultRequestsPerMinute)/60, 1),
	}, nil
}

// loadAPIKey reads the API key into mlocked memory: from the environment
// first, then from the container secret path. The enclave is destroyed by
// the caller once the SDK client holds the key.
func loadAPIKey() (*memguard.LockedBuffer, error) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return memguard.NewBufferFromBytes([]byte(key)), nil
	}
	secretPath := "/run/secrets/openai_api_key"
	raw, err := os.ReadFile(secretPath)
	if err != nil {
		slog.Error("OPENAI_API_KEY environment variable not set and secret not found", "path", secretPath)
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	slog.Info("Read the OpenAI API Key from container secrets")
	return memguard.NewBufferFromBytes([]byte(strings.TrimSpace(string(raw)))), nil
}

// Generate implements the LLMClient interface
func (o *OpenAIClient) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	if err := o.limiter.Wait(ctx); err != nil {
		return "", WrapTransport(err)
	}

	slog.Debug("Requesting adaptation via OpenAI", "model", o.model)
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "You adapt psychometric assessment scales. Answer with JSON only."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.Temperature != nil {
		req.Temperature = *params.Temperature
	}
	if params.MaxTokens != nil {
		req.MaxCompletionTokens = *params.MaxTokens
	}
	if params.TopP != nil {
		req.TopP = *params.TopP
	}
	if len(params.Stop) > 0 {
		req.Stop = params.Stop
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("OpenAI API call failed", "error", err)
		return "", WrapTransport(err)
	}
	if len(resp.Choices) == 0 {
		slog.Warn("OpenAI returned no choices")
		return "", WrapTransport(fmt.Errorf("OpenAI returned no choices"))
	}
	slog.Debug("Received adaptation response", "finish_reason", resp.Choices[0].FinishReason)
	return resp.Choices[0].Message.Content, nil
}
