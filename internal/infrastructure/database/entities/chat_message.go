package entities

import (
	"time"

	"gorm.io/datatypes"
)

// ChatMessage stores each message of a session. Tool call rows start with an
// empty result and are resolved by a single update keyed by ID.
type ChatMessage struct {
	ID         uint           `gorm:"primaryKey"`
	SessionID  uint           `gorm:"index"`
	Role       string         `gorm:"size:32"`
	Content    string         `gorm:"type:text"`
	ToolName   string         `gorm:"size:128"`
	ToolArgs   datatypes.JSON `gorm:"type:jsonb"`
	ToolResult string         `gorm:"type:text"`
	CallID     string         `gorm:"size:64;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
