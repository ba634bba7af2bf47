package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/zhouzirui/mindcare/backend/internal/model/user"
	chatService "github.com/zhouzirui/mindcare/backend/internal/service/chat"
)

type fakeAccounts struct {
	names []string
}

func (f *fakeAccounts) EnsureUser(_ context.Context, username, email string) (user.User, error) {
	f.names = append(f.names, username+"|"+email)
	return user.User{ID: "id-" + username, Username: username, Email: email}, nil
}

type fakeTurns struct {
	result  chatService.Result
	err     error
	userIDs []string
	resets  []string
}

func (f *fakeTurns) SubmitTurn(_ context.Context, userID, _ string, _ chatService.StageObserver) (chatService.Result, error) {
	f.userIDs = append(f.userIDs, userID)
	return f.result, f.err
}

func (f *fakeTurns) Reset(userID string) { f.resets = append(f.resets, userID) }

type recordingSender struct {
	sent []*bot.SendMessageParams
}

func (r *recordingSender) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	r.sent = append(r.sent, p)
	return &models.Message{}, nil
}

func privateUpdate(text string) *models.Update {
	return &models.Update{Message: &models.Message{
		Text: text,
		Chat: models.Chat{ID: 42, Type: "private"},
		From: &models.User{ID: 7},
	}}
}

func TestHandleTextRunsTurnForTelegramUser(t *testing.T) {
	accounts := &fakeAccounts{}
	turns := &fakeTurns{result: chatService.Result{Response: "That sounds hard. 😢 It's okay to feel sad. Take deep breaths."}}
	sender := &recordingSender{}

	NewHandler(accounts, turns, nil).HandleText(context.Background(), sender, privateUpdate("I feel so lonely"))

	if len(accounts.names) != 1 || accounts.names[0] != "tg_7|tg_7@telegram.local" {
		t.Fatalf("unexpected account resolution %v", accounts.names)
	}
	if len(turns.userIDs) != 1 || turns.userIDs[0] != "id-tg_7" {
		t.Fatalf("unexpected turn user %v", turns.userIDs)
	}
	if len(sender.sent) != 1 || sender.sent[0].Text != turns.result.Response || sender.sent[0].ChatID != int64(42) {
		t.Fatalf("unexpected reply %+v", sender.sent)
	}
}

func TestHandleTextErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"validation", &chatService.ValidationError{Message: "Empty message"}, "Empty message"},
		{"internal", errors.New("db down"), internalText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			NewHandler(&fakeAccounts{}, &fakeTurns{err: tt.err}, nil).HandleText(context.Background(), sender, privateUpdate("hi"))
			if len(sender.sent) != 1 || sender.sent[0].Text != tt.want {
				t.Errorf("reply = %+v, want %q", sender.sent, tt.want)
			}
		})
	}
}

func TestHandleResetClearsHistory(t *testing.T) {
	turns := &fakeTurns{}
	sender := &recordingSender{}

	NewHandler(&fakeAccounts{}, turns, nil).HandleReset(context.Background(), sender, privateUpdate("/reset"))

	if len(turns.resets) != 1 || turns.resets[0] != "id-tg_7" {
		t.Fatalf("unexpected resets %v", turns.resets)
	}
	if len(sender.sent) != 1 || sender.sent[0].Text != resetText {
		t.Fatalf("unexpected reply %+v", sender.sent)
	}
}

func TestGroupMessagesIgnored(t *testing.T) {
	turns := &fakeTurns{}
	sender := &recordingSender{}
	update := privateUpdate("hello")
	update.Message.Chat.Type = "group"

	h := NewHandler(&fakeAccounts{}, turns, nil)
	h.HandleText(context.Background(), sender, update)
	h.HandleStart(context.Background(), sender, update)

	if len(turns.userIDs) != 0 || len(sender.sent) != 0 {
		t.Fatal("group chat should be ignored")
	}
}
