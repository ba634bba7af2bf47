package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// GenerationParams are the decoding knobs sent with each generation request.
type GenerationParams struct {
	TopK              int     `json:"top_k"`
	TopP              float64 `json:"top_p"`
	Temperature       float64 `json:"temperature"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	NoRepeatNgramSize int     `json:"no_repeat_ngram_size"`
	MaxNewTokens      int     `json:"max_new_tokens"`
	DoSample          bool    `json:"do_sample"`
	ReturnFullText    bool    `json:"return_full_text"`
}

// LabelScore is one classifier output.
type LabelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// SidecarConfig configures a client for an inference server speaking the
// Hugging Face Inference API format (text-generation-inference, the hosted
// API, or a local transformers pipeline server).
type SidecarConfig struct {
	BaseURL         string
	Token           string
	GeneratorModel  string
	ClassifierModel string
	Params          GenerationParams
	HTTPClient      *http.Client
}

// SidecarClient calls the inference server over HTTP.
type SidecarClient struct {
	baseURL         string
	token           string
	generatorModel  string
	classifierModel string
	params          GenerationParams
	httpClient      *http.Client
}

// NewSidecarClient validates cfg and returns a client.
func NewSidecarClient(cfg SidecarConfig) (*SidecarClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("inference: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("inference: invalid base url %q: %w", base, err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	params := cfg.Params
	params.DoSample = true
	params.ReturnFullText = false

	return &SidecarClient{
		baseURL:         base,
		token:           strings.TrimSpace(cfg.Token),
		generatorModel:  cfg.GeneratorModel,
		classifierModel: cfg.ClassifierModel,
		params:          params,
		httpClient:      httpClient,
	}, nil
}

type inferenceRequest struct {
	Inputs     string            `json:"inputs"`
	Parameters *GenerationParams `json:"parameters,omitempty"`
	Options    map[string]bool   `json:"options,omitempty"`
}

type generationResult struct {
	GeneratedText string `json:"generated_text"`
}

// Generate returns only the newly generated suffix for prompt.
func (c *SidecarClient) Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error) {
	params := c.params
	params.MaxNewTokens = maxNewTokens

	var results []generationResult
	if err := c.post(ctx, c.generatorModel, inferenceRequest{
		Inputs:     prompt,
		Parameters: &params,
		Options:    map[string]bool{"wait_for_model": true},
	}, &results); err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	if len(results) == 0 {
		return "", errors.New("generate: empty result list")
	}

	// Some servers ignore return_full_text=false.
	text := strings.TrimPrefix(results[0].GeneratedText, prompt)
	return strings.TrimSpace(text), nil
}

// Classify returns the classifier outputs sorted by descending score.
func (c *SidecarClient) Classify(ctx context.Context, text string) ([]LabelScore, error) {
	var raw json.RawMessage
	if err := c.post(ctx, c.classifierModel, inferenceRequest{
		Inputs:  text,
		Options: map[string]bool{"wait_for_model": true},
	}, &raw); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	scores, err := decodeLabelScores(raw)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	if len(scores) == 0 {
		return nil, errors.New("classify: empty result list")
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return scores, nil
}

// decodeLabelScores accepts both [[{label,score}]] and [{label,score}].
func decodeLabelScores(raw json.RawMessage) ([]LabelScore, error) {
	var nested [][]LabelScore
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 {
			return nil, nil
		}
		return nested[0], nil
	}

	var flat []LabelScore
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("decode classifier output: %w", err)
	}
	return flat, nil
}

func (c *SidecarClient) post(ctx context.Context, modelID string, payload inferenceRequest, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	endpoint := c.baseURL + "/models/" + modelID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", modelID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned %d: %s", modelID, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
