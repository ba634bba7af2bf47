package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/mindcare/backend/internal/inference"
)

// 生成与分类后端的可选值。
const (
	BackendSidecar = "sidecar"
	BackendOpenAI  = "openai"
	BackendArk     = "ark"
	BackendKeyword = "keyword"
)

// ModelConfig 描述对话模型与情绪分类模型的接入方式。
type ModelConfig struct {
	GeneratorBackend  string `env:"GENERATOR_BACKEND" envDefault:"sidecar"`
	ClassifierBackend string `env:"CLASSIFIER_BACKEND" envDefault:"sidecar"`
	WarmOnStartup     bool   `env:"MODEL_WARM_ON_STARTUP" envDefault:"true"`

	GenerationTimeout time.Duration `env:"GENERATION_TIMEOUT" envDefault:"30s"`
	ClassifyTimeout   time.Duration `env:"CLASSIFY_TIMEOUT" envDefault:"10s"`

	Decoding DecodingConfig

	// HuggingFace Inference API 兼容的推理服务。
	SidecarURL      string `env:"INFERENCE_URL" envDefault:"http://127.0.0.1:8500"`
	SidecarToken    string `env:"INFERENCE_TOKEN"`
	GeneratorModel  string `env:"GENERATOR_MODEL" envDefault:"microsoft/DialoGPT-small"`
	ClassifierModel string `env:"CLASSIFIER_MODEL" envDefault:"j-hartmann/emotion-english-distilroberta-base"`

	// OpenAI 兼容的 completions 服务，例如 vLLM。
	OpenAIBaseURL string `env:"OPENAI_BASE_URL" envDefault:"http://127.0.0.1:8000/v1"`
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIModel   string `env:"OPENAI_MODEL"`

	Ark ArkConfig
}

// DecodingConfig 是采样解码的固定策略参数。
type DecodingConfig struct {
	TopP              float64 `env:"TOP_P" envDefault:"0.9"`
	TopK              int     `env:"TOP_K" envDefault:"50"`
	Temperature       float64 `env:"TEMPERATURE" envDefault:"0.7"`
	RepetitionPenalty float64 `env:"REPETITION_PENALTY" envDefault:"1.2"`
	NoRepeatNgramSize int     `env:"NO_REPEAT_NGRAM_SIZE" envDefault:"3"`
}

// ArkConfig 描述火山方舟大模型凭证。
type ArkConfig struct {
	APIKey    string `env:"ARK_API_KEY"`
	AccessKey string `env:"ARK_ACCESS_KEY"`
	SecretKey string `env:"ARK_SECRET_KEY"`
	Model     string `env:"ARK_MODEL"`
	BaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region    string `env:"ARK_REGION" envDefault:"cn-beijing"`
}

// Enabled 表示是否提供了必需的密钥。
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewArkChatModel 使用配置创建用于生成回复的方舟模型实例，解码参数取自 DecodingConfig，
// 重复惩罚按 inference.FrequencyPenalty 映射为 frequency_penalty。
func (c ModelConfig) NewArkChatModel(ctx context.Context) (model.ChatModel, error) {
	temperature := float32(c.Decoding.Temperature)
	topP := float32(c.Decoding.TopP)
	penalty := inference.FrequencyPenalty(c.Decoding.RepetitionPenalty)
	return c.newArkModel(ctx, &ark.ChatModelConfig{
		Temperature:      &temperature,
		TopP:             &topP,
		FrequencyPenalty: &penalty,
	})
}

// NewArkClassifierModel 创建用于情绪分类的方舟模型实例，温度为 0 以保证结果稳定。
func (c ModelConfig) NewArkClassifierModel(ctx context.Context) (model.ChatModel, error) {
	var temperature float32
	return c.newArkModel(ctx, &ark.ChatModelConfig{Temperature: &temperature})
}

func (c ModelConfig) newArkModel(ctx context.Context, mc *ark.ChatModelConfig) (model.ChatModel, error) {
	if !c.Ark.Enabled() {
		return nil, errors.New("ark credentials missing: set ARK_MODEL with ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}
	mc.BaseURL = c.Ark.BaseURL
	mc.Region = c.Ark.Region
	mc.APIKey = c.Ark.APIKey
	mc.AccessKey = c.Ark.AccessKey
	mc.SecretKey = c.Ark.SecretKey
	mc.Model = c.Ark.Model
	return ark.NewChatModel(ctx, mc)
}

func (c ModelConfig) validate() []error {
	var errs []error

	switch c.GeneratorBackend {
	case BackendSidecar, BackendOpenAI, BackendArk:
	default:
		errs = append(errs, fmt.Errorf("unsupported GENERATOR_BACKEND %q", c.GeneratorBackend))
	}
	switch c.ClassifierBackend {
	case BackendSidecar, BackendArk, BackendKeyword:
	default:
		errs = append(errs, fmt.Errorf("unsupported CLASSIFIER_BACKEND %q", c.ClassifierBackend))
	}

	if c.GeneratorBackend == BackendOpenAI && strings.TrimSpace(c.OpenAIModel) == "" {
		errs = append(errs, errors.New("OPENAI_MODEL is required for the openai generator backend"))
	}
	if (c.GeneratorBackend == BackendArk || c.ClassifierBackend == BackendArk) && !c.Ark.Enabled() {
		errs = append(errs, errors.New("ark backend selected but ARK_* credentials are incomplete"))
	}

	if c.Decoding.TopP <= 0 || c.Decoding.TopP > 1 {
		errs = append(errs, fmt.Errorf("TOP_P must be in (0, 1], got %v", c.Decoding.TopP))
	}
	if c.Decoding.Temperature <= 0 {
		errs = append(errs, fmt.Errorf("TEMPERATURE must be positive, got %v", c.Decoding.Temperature))
	}
	if c.Decoding.RepetitionPenalty <= 1 {
		errs = append(errs, fmt.Errorf("REPETITION_PENALTY must be > 1.0, got %v", c.Decoding.RepetitionPenalty))
	}
	if c.GenerationTimeout <= 0 || c.ClassifyTimeout <= 0 {
		errs = append(errs, errors.New("GENERATION_TIMEOUT and CLASSIFY_TIMEOUT must be positive"))
	}
	return errs
}
