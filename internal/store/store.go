package store

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
	"github.com/zhouzirui/mindcare/backend/internal/model/user"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already registered")
)

// Store persists users with their chat and mood logs.
type Store interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UserByID(ctx context.Context, id string) (user.User, error)
	UserByUsername(ctx context.Context, username string) (user.User, error)
	// DeleteUser removes the user together with all of its records.
	DeleteUser(ctx context.Context, id string) error

	AppendChatRecord(ctx context.Context, rec chat.ChatRecord) (chat.ChatRecord, error)
	AppendMoodRecord(ctx context.Context, rec chat.MoodRecord) (chat.MoodRecord, error)
	// AppendTurn commits both records of one turn in a single transaction.
	AppendTurn(ctx context.Context, chatRec chat.ChatRecord, moodRec chat.MoodRecord) error

	// ChatRecords lists a user's records newest first; limit <= 0 means all.
	ChatRecords(ctx context.Context, userID string, limit int) ([]chat.ChatRecord, error)
	// MoodRecords lists a user's mood records oldest first.
	MoodRecords(ctx context.Context, userID string) ([]chat.MoodRecord, error)
	// MoodScores returns the timestamps and scores of records carrying a score.
	MoodScores(ctx context.Context, userID string) ([]ScoredAt, error)

	Close() error
}

// ScoredAt is one scored chat record.
type ScoredAt struct {
	At    time.Time
	Score float64
}
