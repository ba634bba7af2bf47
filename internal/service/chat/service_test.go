package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	analysis "github.com/zhouzirui/mindcare/backend/internal/analysis/emotion"
	model "github.com/zhouzirui/mindcare/backend/internal/model/chat"
	"github.com/zhouzirui/mindcare/backend/internal/service/chat"
	"github.com/zhouzirui/mindcare/backend/internal/service/gateway"
	"github.com/zhouzirui/mindcare/backend/internal/service/mood"
)

type fakeGateway struct {
	mu         sync.Mutex
	reply      string
	genErr     error
	label      string
	clsErr     error
	prompts    []string
	classified []string
}

func (f *fakeGateway) Generate(_ context.Context, prompt string, _ int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.genErr != nil {
		return "", f.genErr
	}
	return f.reply, nil
}

func (f *fakeGateway) Classify(_ context.Context, text string) (gateway.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classified = append(f.classified, text)
	if f.clsErr != nil {
		return gateway.Prediction{}, f.clsErr
	}
	return gateway.Prediction{Label: f.label, Score: 0.9}, nil
}

func (f *fakeGateway) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[len(f.prompts)-1]
}

type memoryRecorder struct {
	mu    sync.Mutex
	err   error
	chats []model.ChatRecord
	moods []model.MoodRecord
}

func (m *memoryRecorder) AppendTurn(_ context.Context, c model.ChatRecord, md model.MoodRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.chats = append(m.chats, c)
	m.moods = append(m.moods, md)
	return nil
}

func newService(gw *fakeGateway, rec *memoryRecorder, window int) *chat.Service {
	return chat.NewService(chat.Dependencies{
		Gateway: gw,
		Records: rec,
		History: chat.NewHistoryStore(window, 0),
	}, 300)
}

const reply = "I hear you and I am here with you right now."

func TestSubmitTurnLonelySadness(t *testing.T) {
	gw := &fakeGateway{reply: reply, label: "sadness"}
	rec := &memoryRecorder{}
	svc := newService(gw, rec, 10)

	res, err := svc.SubmitTurn(context.Background(), "u1", "I feel lonely", nil)
	if err != nil {
		t.Fatalf("SubmitTurn err: %v", err)
	}
	if res.Mood != "sadness" || res.Emoji != "😢" {
		t.Fatalf("unexpected mood/emoji: %+v", res)
	}
	if !strings.Contains(res.Response, "It's okay to feel sad") {
		t.Fatalf("response missing sadness tip: %q", res.Response)
	}
	if len(rec.moods) != 1 || rec.moods[0].Mood != "sadness" || rec.moods[0].UserID != "u1" {
		t.Fatalf("unexpected mood records %+v", rec.moods)
	}
	if rec.chats[0].UserInput != "I feel lonely" || rec.chats[0].BotResponse != res.Response {
		t.Fatalf("unexpected chat record %+v", rec.chats[0])
	}
	if rec.chats[0].MoodScore == nil || *rec.chats[0].MoodScore != 0.9 {
		t.Fatalf("expected classifier score on chat record, got %v", rec.chats[0].MoodScore)
	}
}

func TestSubmitTurnValidMessagesProduceConsistentResult(t *testing.T) {
	table := mood.DefaultTable()
	for _, label := range []string{"joy", "anger", "fear", "neutral", "admiration"} {
		t.Run(label, func(t *testing.T) {
			svc := newService(&fakeGateway{reply: reply, label: label}, &memoryRecorder{}, 10)
			res, err := svc.SubmitTurn(context.Background(), "u1", "something happened today", nil)
			if err != nil {
				t.Fatalf("SubmitTurn err: %v", err)
			}
			if strings.TrimSpace(res.Response) == "" {
				t.Fatal("response must not be empty")
			}
			if _, ok := analysis.ParseLabel(res.Mood); !ok {
				t.Fatalf("mood %q outside label set", res.Mood)
			}
			if res.Emoji != table.Lookup(res.Mood).Emoji {
				t.Fatalf("emoji %q inconsistent with mood %q", res.Emoji, res.Mood)
			}
		})
	}
}

func TestSubmitTurnValidation(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    string
	}{
		{"empty", "", "Empty message"},
		{"whitespace", "   ", "Empty message"},
		{"too long", strings.Repeat("a", 301), "Message too long. Please limit to 300 characters."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &fakeGateway{reply: reply, label: "joy"}
			rec := &memoryRecorder{}
			svc := newService(gw, rec, 10)

			_, err := svc.SubmitTurn(context.Background(), "u1", tt.message, nil)
			var vErr *chat.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Message != tt.want {
				t.Fatalf("message = %q, want %q", vErr.Message, tt.want)
			}
			if len(gw.prompts) != 0 || len(gw.classified) != 0 {
				t.Fatal("validation failure must not call the models")
			}
			if len(rec.chats) != 0 || len(rec.moods) != 0 {
				t.Fatal("validation failure must not persist")
			}
		})
	}
}

func TestSubmitTurnAcceptsExactlyMaxChars(t *testing.T) {
	svc := newService(&fakeGateway{reply: reply, label: "joy"}, &memoryRecorder{}, 10)
	if _, err := svc.SubmitTurn(context.Background(), "u1", strings.Repeat("é", 300), nil); err != nil {
		t.Fatalf("300 characters should be accepted: %v", err)
	}
}

func TestSubmitTurnGenerationFailureUsesFallback(t *testing.T) {
	gw := &fakeGateway{genErr: gateway.ErrGenerationFailure, label: "neutral"}
	rec := &memoryRecorder{}
	svc := newService(gw, rec, 10)

	res, err := svc.SubmitTurn(context.Background(), "u1", "hello there", nil)
	if err != nil {
		t.Fatalf("generation failure must not fail the turn: %v", err)
	}
	if !strings.HasPrefix(res.Response, chat.FallbackReply) {
		t.Fatalf("response = %q, want fallback", res.Response)
	}
	if len(rec.chats) != 1 || !strings.HasPrefix(rec.chats[0].BotResponse, chat.FallbackReply) {
		t.Fatalf("fallback must be persisted, got %+v", rec.chats)
	}
}

func TestSubmitTurnClassificationFailureUsesNeutral(t *testing.T) {
	gw := &fakeGateway{reply: reply, clsErr: gateway.ErrClassificationFailure}
	rec := &memoryRecorder{}
	svc := newService(gw, rec, 10)

	res, err := svc.SubmitTurn(context.Background(), "u1", "hello there", nil)
	if err != nil {
		t.Fatalf("classification failure must not fail the turn: %v", err)
	}
	if res.Mood != chat.NeutralMood {
		t.Fatalf("mood = %q, want neutral", res.Mood)
	}
	if len(rec.moods) != 1 || rec.moods[0].Mood != "neutral" {
		t.Fatalf("expected neutral mood record, got %+v", rec.moods)
	}
	if rec.chats[0].MoodScore != nil {
		t.Fatal("fallback mood must not carry a score")
	}
}

func TestSubmitTurnClassifiesUserMessage(t *testing.T) {
	gw := &fakeGateway{reply: reply, label: "joy"}
	svc := newService(gw, &memoryRecorder{}, 10)

	if _, err := svc.SubmitTurn(context.Background(), "u1", "  I got the job!  ", nil); err != nil {
		t.Fatalf("SubmitTurn err: %v", err)
	}
	if len(gw.classified) != 1 || gw.classified[0] != "I got the job!" {
		t.Fatalf("classifier should see the user message, got %v", gw.classified)
	}
}

func TestSubmitTurnPersistenceFailure(t *testing.T) {
	var states []chat.State
	gw := &fakeGateway{reply: reply, label: "joy"}
	svc := newService(gw, &memoryRecorder{err: errors.New("db down")}, 10)

	_, err := svc.SubmitTurn(context.Background(), "u1", "hello", func(s chat.State) { states = append(states, s) })
	if !errors.Is(err, chat.ErrInternal) {
		t.Fatalf("expected ErrInternal, got %v", err)
	}
	if len(svc.History("u1")) != 0 {
		t.Fatal("failed turn must not update history")
	}
	if states[len(states)-1] != chat.StateErrored {
		t.Fatalf("last state = %s, want errored", states[len(states)-1])
	}
}

func TestSubmitTurnReportsStates(t *testing.T) {
	var states []chat.State
	svc := newService(&fakeGateway{reply: reply, label: "joy"}, &memoryRecorder{}, 10)

	if _, err := svc.SubmitTurn(context.Background(), "u1", "hello", func(s chat.State) { states = append(states, s) }); err != nil {
		t.Fatalf("SubmitTurn err: %v", err)
	}
	want := []chat.State{
		chat.StateValidating, chat.StateGenerating, chat.StateClassifying,
		chat.StateAugmenting, chat.StatePersisting, chat.StateDone,
	}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestHistoryBoundingAcrossTurns(t *testing.T) {
	const window = 4 // two turns
	gw := &fakeGateway{reply: reply, label: "neutral"}
	svc := newService(gw, &memoryRecorder{}, window)
	ctx := context.Background()

	for _, msg := range []string{"first message", "second message", "third message"} {
		if _, err := svc.SubmitTurn(ctx, "u1", msg, nil); err != nil {
			t.Fatalf("SubmitTurn err: %v", err)
		}
	}
	if _, err := svc.SubmitTurn(ctx, "u1", "fourth message", nil); err != nil {
		t.Fatalf("SubmitTurn err: %v", err)
	}

	prompt := gw.lastPrompt()
	if strings.Contains(prompt, "first message") {
		t.Fatalf("oldest turn should have left the window: %q", prompt)
	}
	if !strings.Contains(prompt, "second message") || !strings.Contains(prompt, "third message") {
		t.Fatalf("recent turns missing from prompt: %q", prompt)
	}
	if !strings.HasSuffix(prompt, "User: fourth message <|endoftext|>") {
		t.Fatalf("prompt should end with the new message: %q", prompt)
	}
}

func TestResetClearsHistoryButKeepsRecords(t *testing.T) {
	gw := &fakeGateway{reply: reply, label: "joy"}
	rec := &memoryRecorder{}
	svc := newService(gw, rec, 10)
	ctx := context.Background()

	if _, err := svc.SubmitTurn(ctx, "u1", "remember this", nil); err != nil {
		t.Fatalf("SubmitTurn err: %v", err)
	}
	svc.Reset("u1")
	if _, err := svc.SubmitTurn(ctx, "u1", "fresh start", nil); err != nil {
		t.Fatalf("SubmitTurn err: %v", err)
	}

	if got := gw.lastPrompt(); got != "User: fresh start <|endoftext|>" {
		t.Fatalf("prompt after reset = %q", got)
	}
	if len(rec.chats) != 2 {
		t.Fatalf("records must survive reset, got %d", len(rec.chats))
	}
}
