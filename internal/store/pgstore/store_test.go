package pgstore

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
	"github.com/zhouzirui/mindcare/backend/internal/model/user"
	"github.com/zhouzirui/mindcare/backend/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	databaseURL := os.Getenv("TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := RunMigrations(databaseURL); err != nil {
		t.Fatalf("RunMigrations() error: %v", err)
	}
	pool, err := NewPool(context.Background(), databaseURL, PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	t.Cleanup(pool.Close)
	return New(pool)
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir() error: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected up and down migrations, got %d files", len(entries))
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	u, err := s.CreateUser(ctx, user.User{Username: "pg-" + t.Name(), Email: t.Name() + "@example.com", PasswordHash: "h"})
	if err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	t.Cleanup(func() { _ = s.DeleteUser(context.Background(), u.ID) })

	if _, err := s.CreateUser(ctx, user.User{Username: u.Username, Email: "x" + u.Email, PasswordHash: "h"}); !errors.Is(err, store.ErrDuplicateUser) {
		t.Errorf("duplicate CreateUser() error = %v, want ErrDuplicateUser", err)
	}

	score := 0.6
	if err := s.AppendTurn(ctx,
		chat.ChatRecord{UserID: u.ID, UserInput: "hi", BotResponse: "hello", Mood: "joy", MoodScore: &score},
		chat.MoodRecord{UserID: u.ID, Mood: "joy"},
	); err != nil {
		t.Fatalf("AppendTurn() error: %v", err)
	}

	recs, err := s.ChatRecords(ctx, u.ID, 50)
	if err != nil || len(recs) != 1 || recs[0].MoodScore == nil || *recs[0].MoodScore != 0.6 {
		t.Fatalf("ChatRecords() = %+v, %v", recs, err)
	}
	scores, err := s.MoodScores(ctx, u.ID)
	if err != nil || len(scores) != 1 {
		t.Fatalf("MoodScores() = %+v, %v", scores, err)
	}

	if err := s.DeleteUser(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUser() error: %v", err)
	}
	if moods, _ := s.MoodRecords(ctx, u.ID); len(moods) != 0 {
		t.Errorf("mood records survived delete: %d", len(moods))
	}
}
