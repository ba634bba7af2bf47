package emotion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/zhouzirui/mindcare/backend/internal/analysis/emotion"
)

type stubChatModel struct {
	content string
	err     error
	system  string
}

func (s *stubChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if len(input) > 0 {
		s.system = input[0].Content
	}
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage(s.content, nil), nil
}

func (s *stubChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := s.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (s *stubChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func newTestService(t *testing.T, stub *stubChatModel) *Service {
	t.Helper()
	svc, err := NewService(context.Background(), stub)
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	return svc
}

func TestClassifyParsesJSON(t *testing.T) {
	stub := &stubChatModel{content: "Sure! {\"label\": \"Sadness\", \"score\": 0.83}"}
	svc := newTestService(t, stub)

	got, err := svc.Classify(context.Background(), "I feel lonely")
	if err != nil {
		t.Fatalf("Classify err: %v", err)
	}
	if got.Label != analysis.Sadness || got.Score != 0.83 {
		t.Fatalf("unexpected prediction %+v", got)
	}
	if !strings.Contains(stub.system, "nervousness") || !strings.Contains(stub.system, `{"label"`) {
		t.Fatalf("system prompt not rendered as expected: %q", stub.system)
	}
}

func TestClassifyRejectsUnknownLabel(t *testing.T) {
	svc := newTestService(t, &stubChatModel{content: `{"label":"melancholy","score":0.9}`})
	if _, err := svc.Classify(context.Background(), "meh"); err == nil {
		t.Fatal("expected error for unknown label")
	}
}

func TestClassifyRejectsNonJSON(t *testing.T) {
	svc := newTestService(t, &stubChatModel{content: "sadness"})
	if _, err := svc.Classify(context.Background(), "meh"); err == nil {
		t.Fatal("expected error for missing json")
	}
}

func TestClassifyPropagatesModelError(t *testing.T) {
	svc := newTestService(t, &stubChatModel{err: errors.New("timeout")})
	if _, err := svc.Classify(context.Background(), "meh"); err == nil {
		t.Fatal("expected model error")
	}
}

func TestClampScore(t *testing.T) {
	if clampScore(0) != 0.5 || clampScore(3) != 1 || clampScore(0.4) != 0.4 {
		t.Fatal("unexpected clamp results")
	}
}
