package user

import (
	"time"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
)

// User is an account owning chat and mood records.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Username     string    `json:"username" gorm:"size:80;not null;uniqueIndex"`
	Email        string    `json:"email" gorm:"size:120;not null;uniqueIndex"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"`
	CreatedAt    time.Time `json:"createdAt" gorm:"not null"`

	// Deleting a user cascades to its chat and mood records.
	ChatRecords []chat.ChatRecord `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	MoodRecords []chat.MoodRecord `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}
