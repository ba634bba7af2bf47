package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
	"github.com/zhouzirui/mindcare/backend/internal/model/user"
)

// PrepareUser fills the generated fields of a new user.
func PrepareUser(u user.User) user.User {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	return u
}

// PrepareChatRecord fills the generated fields of a new chat record.
func PrepareChatRecord(rec chat.ChatRecord) chat.ChatRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

// PrepareMoodRecord fills the generated fields of a new mood record.
func PrepareMoodRecord(rec chat.MoodRecord) chat.MoodRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}
