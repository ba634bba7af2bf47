package main

import (
	"context"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/mindcare/backend/internal/config"
	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
	"github.com/zhouzirui/mindcare/backend/internal/service/conversation"
	"github.com/zhouzirui/mindcare/backend/internal/service/gateway"
	"github.com/zhouzirui/mindcare/backend/internal/service/sanitize"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "", "测试模式: generate 或 classify")
	text := flag.String("text", "", "输入文本")
	history := flag.String("history", "", "以 | 分隔的历史对话，依次为 User、Bot 轮流发言")
	raw := flag.Bool("raw", false, "generate 模式下输出未经清洗的原始文本")
	timeout := flag.Duration("timeout", 60*time.Second, "请求超时时间")

	flag.Parse()

	if *mode != "generate" && *mode != "classify" {
		flag.Usage()
		log.Fatal("请通过 -mode=generate 或 -mode=classify 指定测试模式")
	}
	if strings.TrimSpace(*text) == "" {
		log.Fatal("请通过 -text 提供输入文本")
	}

	gw := gateway.FromConfig(cfg.Model, cfg.Chat.EOSToken, gateway.Options{
		GenerationTimeout: cfg.Model.GenerationTimeout,
		ClassifyTimeout:   cfg.Model.ClassifyTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	if err := gw.Warm(ctx); err != nil {
		log.Printf("[WARN] 预热失败: %v", err)
	}
	log.Printf("[INFO] 预热耗时 %s", time.Since(start))

	switch *mode {
	case "generate":
		runGenerate(ctx, gw, cfg.Chat, parseHistory(*history), *text, *raw)
	case "classify":
		runClassify(ctx, gw, *text)
	}
}

func runGenerate(ctx context.Context, gw *gateway.Gateway, chatCfg config.ChatConfig, window []chat.HistoryEntry, text string, raw bool) {
	assembler := conversation.NewAssembler(nil, conversation.Config{
		EOSToken:       chatCfg.EOSToken,
		MaxInputTokens: chatCfg.MaxInputTokens,
		ContextLimit:   chatCfg.ContextLimit,
		NewTokenBudget: chatCfg.NewTokenBudget,
	})
	prompt := assembler.Build(window, text)
	maxNew := assembler.MaxNewTokens(prompt.Tokens)
	log.Printf("[INFO] prompt tokens=%d truncated=%v max_new_tokens=%d", prompt.Tokens, prompt.Truncated, maxNew)
	log.Printf("[INFO] prompt: %s", prompt.Text)

	start := time.Now()
	out, err := gw.Generate(ctx, prompt.Text, maxNew)
	if err != nil {
		log.Fatalf("生成失败: %v", err)
	}
	log.Printf("[INFO] 生成耗时 %s", time.Since(start))

	if raw {
		log.Printf("[RESULT] %s", out)
		return
	}
	cleaned := sanitize.New(sanitize.Config{
		MinWords: chatCfg.MinResponseWords,
		MaxWords: chatCfg.MaxResponseWords,
	}).Clean(out, text)
	log.Printf("[RESULT] %s", cleaned)
}

func runClassify(ctx context.Context, gw *gateway.Gateway, text string) {
	start := time.Now()
	pred, err := gw.Classify(ctx, text)
	if err != nil {
		log.Fatalf("分类失败: %v", err)
	}
	log.Printf("[INFO] 分类耗时 %s", time.Since(start))
	log.Printf("[RESULT] label=%s score=%.4f", pred.Label, pred.Score)
}

func parseHistory(raw string) []chat.HistoryEntry {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, "|")
	entries := make([]chat.HistoryEntry, 0, len(parts))
	for i, p := range parts {
		speaker := chat.SpeakerUser
		if i%2 == 1 {
			speaker = chat.SpeakerBot
		}
		entries = append(entries, chat.HistoryEntry{Speaker: speaker, Text: strings.TrimSpace(p)})
	}
	return entries
}
