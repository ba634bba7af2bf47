package inference

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// CompletionConfig configures the OpenAI-compatible completions backend,
// typically a vLLM server hosting the fine-tuned dialogue model.
type CompletionConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Stop    []string
	Params  GenerationParams
}

// CompletionClient generates replies through the /completions endpoint.
type CompletionClient struct {
	client *openai.Client
	model  string
	stop   []string
	params GenerationParams
}

// NewCompletionClient returns a client for cfg.
func NewCompletionClient(cfg CompletionConfig) (*CompletionClient, error) {
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("inference: completion model is required")
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}

	return &CompletionClient{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		stop:   cfg.Stop,
		params: cfg.Params,
	}, nil
}

// Generate implements the gateway generator contract. The completions API has
// no top_k or n-gram blocking; repetition is discouraged through
// frequency_penalty derived from the repetition penalty.
func (c *CompletionClient) Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error) {
	resp, err := c.client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:            c.model,
		Prompt:           prompt,
		MaxTokens:        maxNewTokens,
		Temperature:      float32(c.params.Temperature),
		TopP:             float32(c.params.TopP),
		FrequencyPenalty: FrequencyPenalty(c.params.RepetitionPenalty),
		Stop:             c.stop,
	})
	if err != nil {
		return "", fmt.Errorf("create completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("create completion: no choices returned")
	}
	return strings.TrimSpace(resp.Choices[0].Text), nil
}

// FrequencyPenalty maps a multiplicative repetition penalty (>1) onto the
// additive [0, 2] frequency penalty range.
func FrequencyPenalty(repetition float64) float32 {
	p := repetition - 1
	if p < 0 {
		return 0
	}
	if p > 2 {
		return 2
	}
	return float32(p)
}
