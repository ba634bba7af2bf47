package chat

import "time"

// ChatRecord persists one completed turn. Records are append-only.
type ChatRecord struct {
	ID          string    `json:"id" gorm:"primaryKey;size:36"`
	UserID      string    `json:"userId" gorm:"size:36;not null;index"`
	UserInput   string    `json:"userInput" gorm:"type:text;not null"`
	BotResponse string    `json:"botResponse" gorm:"type:text;not null"`
	Mood        string    `json:"mood" gorm:"size:32;not null"`
	MoodScore   *float64  `json:"moodScore"`
	CreatedAt   time.Time `json:"createdAt" gorm:"not null;index"`
}

// MoodRecord persists the mood detected for one turn.
type MoodRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"userId" gorm:"size:36;not null;index"`
	Mood      string    `json:"mood" gorm:"size:32;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;index"`
}
