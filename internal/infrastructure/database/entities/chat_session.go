package entities

import "time"

// ChatSession stores one conversation.
type ChatSession struct {
	ID        uint   `gorm:"primaryKey"`
	PublicID  string `gorm:"size:64;uniqueIndex"`
	Title     string `gorm:"size:256"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
