package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// Service 使用 eino 链路把对话转录交给聊天大模型续写，作为对话生成后端之一。
type Service struct {
	chatModel model.ChatModel
	chain     compose.Runnable[map[string]any, *schema.Message]
	eos       string
}

// NewService 编译提示词模板与聊天模型组成的链路。eos 为对话轮次分隔符。
func NewService(ctx context.Context, chatModel model.ChatModel, eos string) (*Service, error) {
	if chatModel == nil {
		return nil, errors.New("chat model is required")
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{transcript}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{chatModel: chatModel, chain: runnable, eos: eos}, nil
}

// Generate 续写 transcript 中 Bot 的下一句回复。
func (s *Service) Generate(ctx context.Context, transcript string, maxNewTokens int) (string, error) {
	input := map[string]any{
		"system":     buildSystemPrompt(s.eos),
		"transcript": transcript,
	}

	response, err := s.chain.Invoke(ctx, input, compose.WithChatModelOption(model.WithMaxTokens(maxNewTokens)))
	if err != nil {
		return "", fmt.Errorf("failed to run chat chain: %w", err)
	}
	if response == nil {
		return "", errors.New("chat chain returned no message")
	}

	reply := extractReply(response.Content, s.eos)
	slog.Debug("ark reply generated", "component", "ai", "length", len(reply))
	return reply, nil
}

// ChatModel 返回底层的聊天模型，供情绪分类复用。
func (s *Service) ChatModel() model.ChatModel {
	return s.chatModel
}

// extractReply 去掉模型可能附带的 "Bot:" 前缀，并截断到第一个轮次分隔符。
func extractReply(content, eos string) string {
	reply := strings.TrimSpace(content)
	if eos != "" {
		if idx := strings.Index(reply, eos); idx >= 0 {
			reply = reply[:idx]
		}
	}
	reply = strings.TrimSpace(reply)
	for _, prefix := range []string{"Bot:", "bot:", "BOT:"} {
		reply = strings.TrimSpace(strings.TrimPrefix(reply, prefix))
	}
	if idx := strings.Index(reply, "\nUser:"); idx >= 0 {
		reply = reply[:idx]
	}
	return strings.TrimSpace(reply)
}
