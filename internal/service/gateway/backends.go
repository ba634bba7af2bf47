package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cloudwego/eino/components/model"

	analysis "github.com/zhouzirui/mindcare/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mindcare/backend/internal/config"
	"github.com/zhouzirui/mindcare/backend/internal/inference"
	"github.com/zhouzirui/mindcare/backend/internal/service/ai"
	emotionservice "github.com/zhouzirui/mindcare/backend/internal/service/emotion"
)

// FromConfig wires the backends selected in cfg. Ark generation samples with
// the decoding config while Ark classification runs a separate model instance
// at temperature 0.
func FromConfig(cfg config.ModelConfig, eos string, opts Options) *Gateway {
	b := newBackends(cfg, eos)
	return New(b.generator, b.classifier, opts)
}

type backends struct {
	cfg config.ModelConfig
	eos string

	arkChat     *lazy[model.ChatModel]
	arkClassify *lazy[model.ChatModel]
}

func newBackends(cfg config.ModelConfig, eos string) *backends {
	return &backends{
		cfg:         cfg,
		eos:         eos,
		arkChat:     newLazy(cfg.NewArkChatModel),
		arkClassify: newLazy(cfg.NewArkClassifierModel),
	}
}

func (b *backends) params() inference.GenerationParams {
	d := b.cfg.Decoding
	return inference.GenerationParams{
		TopK:              d.TopK,
		TopP:              d.TopP,
		Temperature:       d.Temperature,
		RepetitionPenalty: d.RepetitionPenalty,
		NoRepeatNgramSize: d.NoRepeatNgramSize,
		DoSample:          true,
	}
}

func (b *backends) sidecar() (*inference.SidecarClient, error) {
	return inference.NewSidecarClient(inference.SidecarConfig{
		BaseURL:         b.cfg.SidecarURL,
		Token:           b.cfg.SidecarToken,
		GeneratorModel:  b.cfg.GeneratorModel,
		ClassifierModel: b.cfg.ClassifierModel,
		Params:          b.params(),
		HTTPClient:      &http.Client{},
	})
}

func (b *backends) generator(ctx context.Context) (Generator, error) {
	switch b.cfg.GeneratorBackend {
	case config.BackendSidecar:
		return b.sidecar()
	case config.BackendOpenAI:
		return inference.NewCompletionClient(inference.CompletionConfig{
			BaseURL: b.cfg.OpenAIBaseURL,
			APIKey:  b.cfg.OpenAIAPIKey,
			Model:   b.cfg.OpenAIModel,
			Stop:    []string{b.eos},
			Params:  b.params(),
		})
	case config.BackendArk:
		chatModel, err := b.arkChat.get(ctx)
		if err != nil {
			return nil, err
		}
		return ai.NewService(ctx, chatModel, b.eos)
	default:
		return nil, fmt.Errorf("unsupported generator backend %q", b.cfg.GeneratorBackend)
	}
}

func (b *backends) classifier(ctx context.Context) (Classifier, error) {
	switch b.cfg.ClassifierBackend {
	case config.BackendSidecar:
		client, err := b.sidecar()
		if err != nil {
			return nil, err
		}
		return SidecarClassifier{Client: client}, nil
	case config.BackendArk:
		chatModel, err := b.arkClassify.get(ctx)
		if err != nil {
			return nil, err
		}
		svc, err := emotionservice.NewService(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		return LLMClassifier{Service: svc}, nil
	case config.BackendKeyword:
		return KeywordClassifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported classifier backend %q", b.cfg.ClassifierBackend)
	}
}

// SidecarClassifier adapts the inference sidecar to Classifier.
type SidecarClassifier struct {
	Client interface {
		Classify(ctx context.Context, text string) ([]inference.LabelScore, error)
	}
}

// Classify implements Classifier.
func (c SidecarClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	scores, err := c.Client.Classify(ctx, text)
	if err != nil {
		return Prediction{}, err
	}
	if len(scores) == 0 {
		return Prediction{}, fmt.Errorf("no labels returned")
	}
	return Prediction{Label: scores[0].Label, Score: scores[0].Score}, nil
}

// LLMClassifier adapts the chat-model emotion service to Classifier.
type LLMClassifier struct {
	Service *emotionservice.Service
}

// Classify implements Classifier.
func (c LLMClassifier) Classify(ctx context.Context, text string) (Prediction, error) {
	p, err := c.Service.Classify(ctx, text)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{Label: string(p.Label), Score: p.Score}, nil
}

// KeywordClassifier runs the offline keyword heuristic.
type KeywordClassifier struct{}

// Classify implements Classifier.
func (KeywordClassifier) Classify(_ context.Context, text string) (Prediction, error) {
	d := analysis.Analyze(text)
	return Prediction{Label: string(d.Emotion), Score: d.Score}, nil
}
