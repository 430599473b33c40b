package dto

// SendMessageRequest models POST /v1/sessions/{session_id}/messages input.
type SendMessageRequest struct {
	Model        string   `json:"model" binding:"required"`
	Content      string   `json:"content" binding:"required"`
	SystemPrompt string   `json:"system_prompt,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	MaxTokens    *int     `json:"max_tokens,omitempty"`
	Stream       *bool    `json:"stream,omitempty"`
}

// CreateSessionRequest models POST /v1/sessions input.
type CreateSessionRequest struct {
	Title string `json:"title,omitempty"`
}

// RenameSessionRequest models PATCH /v1/sessions/{session_id} input.
type RenameSessionRequest struct {
	Title string `json:"title" binding:"required"`
}
