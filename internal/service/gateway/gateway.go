package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	analysis "github.com/zhouzirui/mindcare/backend/internal/analysis/emotion"
)

var (
	// ErrGenerationFailure marks any failure of the dialogue model. Callers
	// degrade to a fallback reply.
	ErrGenerationFailure = errors.New("generation failure")
	// ErrClassificationFailure marks any failure of the emotion classifier.
	// Callers degrade to the neutral label.
	ErrClassificationFailure = errors.New("classification failure")
)

// Generator continues a dialogue prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error)
}

// Classifier predicts the emotion of a text.
type Classifier interface {
	Classify(ctx context.Context, text string) (Prediction, error)
}

// Prediction is the top classifier label with its probability.
type Prediction struct {
	Label string
	Score float64
}

// Options configure a Gateway.
type Options struct {
	GenerationTimeout time.Duration
	ClassifyTimeout   time.Duration
	Logger            *slog.Logger
}

// Gateway owns the dialogue model and emotion classifier clients. Each is
// built at most once, on first use or by Warm, and shared by all requests.
type Gateway struct {
	generator  *lazy[Generator]
	classifier *lazy[Classifier]

	generationTimeout time.Duration
	classifyTimeout   time.Duration
	logger            *slog.Logger
}

// New returns a Gateway building its backends with the given loaders.
func New(loadGenerator func(context.Context) (Generator, error), loadClassifier func(context.Context) (Classifier, error), opts Options) *Gateway {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		generator:         newLazy(loadGenerator),
		classifier:        newLazy(loadClassifier),
		generationTimeout: opts.GenerationTimeout,
		classifyTimeout:   opts.ClassifyTimeout,
		logger:            logger.With("component", "gateway"),
	}
}

// Warm builds both backends ahead of the first request.
func (g *Gateway) Warm(ctx context.Context) error {
	_, genErr := g.generator.get(ctx)
	if genErr != nil {
		genErr = fmt.Errorf("load generator: %w", genErr)
	}
	_, clsErr := g.classifier.get(ctx)
	if clsErr != nil {
		clsErr = fmt.Errorf("load classifier: %w", clsErr)
	}
	return errors.Join(genErr, clsErr)
}

// Loaded reports whether the backends have been built.
func (g *Gateway) Loaded() (generator, classifier bool) {
	return g.generator.loaded(), g.classifier.loaded()
}

// Generate returns the model continuation of prompt. Every failure, including
// an empty continuation, wraps ErrGenerationFailure.
func (g *Gateway) Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error) {
	generator, err := g.generator.get(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: load generator: %w", ErrGenerationFailure, err)
	}

	ctx, cancel := withTimeout(ctx, g.generationTimeout)
	defer cancel()

	started := time.Now()
	text, err := generator.Generate(ctx, prompt, maxNewTokens)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailure, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty output", ErrGenerationFailure)
	}

	g.logger.Debug("generation finished", "max_new_tokens", maxNewTokens, "elapsed", time.Since(started))
	return text, nil
}

// Classify returns the top label for text. Labels outside the GoEmotions set
// are treated as failures; every failure wraps ErrClassificationFailure.
func (g *Gateway) Classify(ctx context.Context, text string) (Prediction, error) {
	classifier, err := g.classifier.get(ctx)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: load classifier: %w", ErrClassificationFailure, err)
	}

	ctx, cancel := withTimeout(ctx, g.classifyTimeout)
	defer cancel()

	prediction, err := classifier.Classify(ctx, text)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %w", ErrClassificationFailure, err)
	}

	label, ok := analysis.ParseLabel(prediction.Label)
	if !ok {
		return Prediction{}, fmt.Errorf("%w: unknown label %q", ErrClassificationFailure, prediction.Label)
	}
	return Prediction{Label: string(label), Score: prediction.Score}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
