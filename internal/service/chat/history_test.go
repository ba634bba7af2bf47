package chat

import (
	"testing"
	"time"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
)

func entry(text string) chat.HistoryEntry {
	return chat.HistoryEntry{Speaker: chat.SpeakerUser, Text: text}
}

func TestHistoryStoreKeepsMostRecentWindow(t *testing.T) {
	h := NewHistoryStore(3, 0)
	h.Append("u1", entry("a"), entry("b"))
	h.Append("u1", entry("c"), entry("d"))

	got := h.Window("u1")
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Text != "b" || got[2].Text != "d" {
		t.Fatalf("unexpected window %+v", got)
	}
}

func TestHistoryStoreWindowIsACopy(t *testing.T) {
	h := NewHistoryStore(4, 0)
	h.Append("u1", entry("a"))

	got := h.Window("u1")
	got[0].Text = "mutated"
	if h.Window("u1")[0].Text != "a" {
		t.Fatal("Window must not expose internal state")
	}
}

func TestHistoryStoreIsolatesUsersAndResets(t *testing.T) {
	h := NewHistoryStore(4, 0)
	h.Append("u1", entry("a"))
	h.Append("u2", entry("b"))

	h.Reset("u1")
	if len(h.Window("u1")) != 0 {
		t.Fatal("reset user should have empty history")
	}
	if len(h.Window("u2")) != 1 {
		t.Fatal("other users must be untouched by reset")
	}
}

func TestHistoryStoreExpiresIdleSessions(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	h := NewHistoryStore(4, time.Hour)
	h.now = func() time.Time { return now }

	h.Append("u1", entry("a"))
	h.Append("u2", entry("b"))

	now = now.Add(30 * time.Minute)
	h.Append("u2", entry("c"))

	now = now.Add(45 * time.Minute)
	if len(h.Window("u1")) != 0 {
		t.Fatal("idle session should read as empty")
	}
	if removed := h.Sweep(); removed != 1 {
		t.Fatalf("Sweep() = %d, want 1", removed)
	}
	if len(h.Window("u2")) != 2 {
		t.Fatal("active session should survive sweep")
	}
}
