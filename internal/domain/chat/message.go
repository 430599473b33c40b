package chat

import (
	"context"
	"time"
)

// Role tags the variant of a persisted message.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleSystem     Role = "system"
	RoleToolCall   Role = "tool_call"
	RoleToolResult Role = "tool_result"
)

// Message is a single turn in a conversation. Tool fields are populated only
// for the tool_call/tool_result variants. A tool_call message starts out
// pending (no result) and is resolved via a single in-place update keyed by
// the record ID assigned at creation.
type Message struct {
	ID         uint           `json:"-"`
	SessionID  uint           `json:"-"`
	Role       Role           `json:"role"`
	Content    string         `json:"content"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolArgs   map[string]any `json:"tool_args,omitempty"`
	ToolResult string         `json:"tool_result,omitempty"`
	CallID     string         `json:"call_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// MessageStore persists the conversation log. Persistence is best-effort: the
// orchestrator logs and swallows every store failure, so implementations never
// get to block or abort a conversation.
type MessageStore interface {
	Append(ctx context.Context, msg *Message) (uint, error)
	UpdateResult(ctx context.Context, recordID uint, result string) error
	ListBySession(ctx context.Context, sessionID uint) ([]Message, error)
}
