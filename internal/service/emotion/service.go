package emotion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/zhouzirui/mindcare/backend/internal/analysis/emotion"
)

// Prediction 是一次情绪分类的结果。
type Prediction struct {
	Label analysis.Label
	Score float64
}

// Service 使用大模型对用户消息做情绪分类。
type Service struct {
	classifier compose.Runnable[map[string]any, *schema.Message]
}

// NewService 创建情绪分类服务。chatModel 可重用对话生成使用的模型实例。
func NewService(ctx context.Context, chatModel model.ChatModel) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(emotionSystemPrompt),
		schema.UserMessage("{message}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion classifier chain: %w", err)
	}

	return &Service{classifier: runnable}, nil
}

// Classify 返回置信度最高的标签。模型异常、输出无法解析或标签未知时返回错误。
func (s *Service) Classify(ctx context.Context, text string) (Prediction, error) {
	msg, err := s.classifier.Invoke(ctx, map[string]any{
		"labels":  labelList(),
		"message": strings.TrimSpace(text),
	})
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier invoke: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return Prediction{}, errors.New("classifier returned empty output")
	}

	payload, err := parseClassifierOutput(msg.Content)
	if err != nil {
		return Prediction{}, fmt.Errorf("classifier output: %w", err)
	}

	label, ok := analysis.ParseLabel(payload.Label)
	if !ok {
		return Prediction{}, fmt.Errorf("classifier returned unknown label %q", payload.Label)
	}

	return Prediction{Label: label, Score: clampScore(payload.Score)}, nil
}

// parseClassifierOutput 解析大模型返回的 JSON，容忍前后多余文本。
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, errors.New("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func clampScore(val float64) float64 {
	switch {
	case val <= 0:
		return 0.5
	case val > 1:
		return 1
	default:
		return val
	}
}

func labelList() string {
	names := make([]string, len(analysis.Labels))
	for i, l := range analysis.Labels {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}

type classifierPayload struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

const emotionSystemPrompt = `You are an emotion classifier. Read the user's message and choose the single most likely emotion from this list: {labels}.
Return only one JSON object: {{"label": "<one label from the list>", "score": <confidence between 0 and 1>}}. No other text.`
