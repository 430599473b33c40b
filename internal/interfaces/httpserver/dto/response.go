package dto

import (
	"github.com/searchchat/chat-api/internal/domain/chat"
	"github.com/searchchat/chat-api/internal/domain/llm"
	"github.com/searchchat/chat-api/internal/domain/session"
)

// SessionPayload is returned to clients for session resources.
type SessionPayload struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// SessionFromDomain maps a domain session to its DTO.
func SessionFromDomain(s *session.Session) SessionPayload {
	return SessionPayload{
		ID:        s.PublicID,
		Title:     s.Title,
		CreatedAt: s.CreatedAt.Unix(),
		UpdatedAt: s.UpdatedAt.Unix(),
	}
}

// MessagePayload is one entry of a session's conversation log.
type MessagePayload struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolArgs   map[string]any `json:"tool_args,omitempty"`
	ToolResult string         `json:"tool_result,omitempty"`
	CallID     string         `json:"call_id,omitempty"`
	CreatedAt  int64          `json:"created_at"`
}

// MessagesFromDomain maps the persisted log to its DTO form.
func MessagesFromDomain(messages []chat.Message) []MessagePayload {
	payload := make([]MessagePayload, 0, len(messages))
	for _, msg := range messages {
		payload = append(payload, MessagePayload{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolName:   msg.ToolName,
			ToolArgs:   msg.ToolArgs,
			ToolResult: msg.ToolResult,
			CallID:     msg.CallID,
			CreatedAt:  msg.CreatedAt.Unix(),
		})
	}
	return payload
}

// TurnPayload is the non-streaming result of one conversation turn.
type TurnPayload struct {
	Text      string            `json:"text"`
	Rounds    int               `json:"rounds"`
	ToolCalls []ToolCallPayload `json:"tool_calls,omitempty"`
}

// ToolCallPayload summarizes one executed tool call.
type ToolCallPayload struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Result string         `json:"result,omitempty"`
}

// TurnFromDomain maps a turn outcome to its DTO.
func TurnFromDomain(outcome *chat.Outcome) TurnPayload {
	payload := TurnPayload{
		Text:   outcome.Text,
		Rounds: outcome.Rounds,
	}
	for _, exec := range outcome.Executions {
		payload.ToolCalls = append(payload.ToolCalls, ToolCallPayload{
			ID:     exec.CallID,
			Name:   exec.ToolName,
			Args:   exec.Args,
			Result: exec.Result,
		})
	}
	return payload
}

// ModelListPayload mirrors the OpenAI-compatible model list shape.
type ModelListPayload struct {
	Object string      `json:"object"`
	Data   []llm.Model `json:"data"`
}
