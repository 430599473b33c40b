package handlers

import (
	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/chat"
	"github.com/searchchat/chat-api/internal/domain/models"
	"github.com/searchchat/chat-api/internal/domain/session"
)

// Provider wires all HTTP handlers for dependency injection.
type Provider struct {
	Chat    *ChatHandler
	Session *SessionHandler
	Model   *ModelHandler
}

// NewProvider constructs the handler provider with domain services.
func NewProvider(chatService chat.Service, sessionService *session.Service, catalog *models.Catalog, log zerolog.Logger) *Provider {
	return &Provider{
		Chat:    NewChatHandler(chatService, log),
		Session: NewSessionHandler(sessionService, log),
		Model:   NewModelHandler(catalog, log),
	}
}
