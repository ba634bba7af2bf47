package chat

import (
	"sync"
	"time"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
)

// HistoryStore keeps the bounded, per-user conversation window in memory.
// Concurrent turns of one user are last-write-wins on the window.
type HistoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
	window   int
	idleTTL  time.Duration
	now      func() time.Time
}

type session struct {
	entries []chat.HistoryEntry
	touched time.Time
}

// NewHistoryStore keeps at most window entries per user. Sessions idle for
// longer than idleTTL are dropped; zero disables expiry.
func NewHistoryStore(window int, idleTTL time.Duration) *HistoryStore {
	if window <= 0 {
		window = 10
	}
	return &HistoryStore{
		sessions: make(map[string]*session),
		window:   window,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Window returns a copy of the user's history, oldest first.
func (h *HistoryStore) Window(userID string) []chat.HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sessions[userID]
	if !ok || h.expired(s) {
		return nil
	}

	copied := make([]chat.HistoryEntry, len(s.entries))
	copy(copied, s.entries)
	return copied
}

// Append adds entries and trims the window to the most recent ones.
func (h *HistoryStore) Append(userID string, entries ...chat.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.sessions[userID]
	if !ok || h.expired(s) {
		s = &session{entries: make([]chat.HistoryEntry, 0, h.window)}
		h.sessions[userID] = s
	}

	s.entries = append(s.entries, entries...)
	if over := len(s.entries) - h.window; over > 0 {
		s.entries = append(s.entries[:0], s.entries[over:]...)
	}
	s.touched = h.now()
}

// Reset clears the user's history.
func (h *HistoryStore) Reset(userID string) {
	h.mu.Lock()
	delete(h.sessions, userID)
	h.mu.Unlock()
}

// Sweep drops idle sessions and reports how many were removed.
func (h *HistoryStore) Sweep() int {
	if h.idleTTL <= 0 {
		return 0
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, s := range h.sessions {
		if h.expired(s) {
			delete(h.sessions, id)
			removed++
		}
	}
	return removed
}

func (h *HistoryStore) expired(s *session) bool {
	return h.idleTTL > 0 && h.now().Sub(s.touched) > h.idleTTL
}
