package ai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeChatModel struct {
	reply     string
	err       error
	lastInput []*schema.Message
	maxTokens *int
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.lastInput = input
	f.maxTokens = model.GetCommonOptions(nil, opts...).MaxTokens
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func TestGeneratePassesTranscriptAndBudget(t *testing.T) {
	fake := &fakeChatModel{reply: "Bot: That sounds lonely. <|endoftext|> User: yes"}
	svc, err := NewService(context.Background(), fake, "<|endoftext|>")
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	reply, err := svc.Generate(context.Background(), "User: I feel lonely <|endoftext|>", 80)
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if reply != "That sounds lonely." {
		t.Fatalf("unexpected reply %q", reply)
	}

	if len(fake.lastInput) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(fake.lastInput))
	}
	if fake.lastInput[0].Role != schema.System || !strings.Contains(fake.lastInput[0].Content, "companion") {
		t.Fatalf("unexpected system message: %+v", fake.lastInput[0])
	}
	if fake.lastInput[1].Content != "User: I feel lonely <|endoftext|>" {
		t.Fatalf("unexpected transcript %q", fake.lastInput[1].Content)
	}
	if fake.maxTokens == nil || *fake.maxTokens != 80 {
		t.Fatalf("expected max tokens option 80, got %v", fake.maxTokens)
	}
}

func TestGeneratePropagatesModelError(t *testing.T) {
	fake := &fakeChatModel{err: errors.New("quota exceeded")}
	svc, err := NewService(context.Background(), fake, "<|endoftext|>")
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	if _, err := svc.Generate(context.Background(), "User: hi <|endoftext|>", 10); err == nil {
		t.Fatal("expected error from chat model")
	}
}

func TestNewServiceRequiresModel(t *testing.T) {
	if _, err := NewService(context.Background(), nil, "<eos>"); err == nil {
		t.Fatal("expected error for nil chat model")
	}
}

func TestExtractReply(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain reply", "plain reply"},
		{"Bot: prefixed", "prefixed"},
		{"first line\nUser: next", "first line"},
		{"cut here <eos> rest", "cut here"},
	}
	for _, tt := range tests {
		if got := extractReply(tt.in, "<eos>"); got != tt.want {
			t.Errorf("extractReply(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
