package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/chat"
	"github.com/searchchat/chat-api/internal/domain/session"
	"github.com/searchchat/chat-api/internal/interfaces/httpserver/dto"
)

// ChatHandler exposes HTTP entrypoints for conversation turns.
type ChatHandler struct {
	service chat.Service
	log     zerolog.Logger
}

// NewChatHandler constructs the handler.
func NewChatHandler(service chat.Service, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service: service,
		log:     log.With().Str("handler", "chat").Logger(),
	}
}

// SendMessage handles POST /v1/sessions/:session_id/messages
// @Summary Send a message
// @Description Runs one conversation turn, orchestrating tool calls when the model requests them.
// @Tags Chat
// @Accept json
// @Produce json
// @Param session_id path string true "Session ID"
// @Param request body dto.SendMessageRequest true "Message request"
// @Success 200 {object} dto.TurnPayload
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /v1/sessions/{session_id}/messages [post]
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := chat.SendParams{
		SessionPublicID: c.Param("session_id"),
		Model:           req.Model,
		Content:         req.Content,
		SystemPrompt:    req.SystemPrompt,
		Temperature:     req.Temperature,
		MaxTokens:       req.MaxTokens,
	}

	if req.Stream != nil && *req.Stream {
		h.streamTurn(c, params)
		return
	}

	// Discard intermediate events; the final outcome carries everything the
	// non-streaming caller needs.
	outcome, err := h.service.SendMessage(c.Request.Context(), params, chat.SinkFunc(func(chat.Event) {}))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.TurnFromDomain(outcome))
}

// History handles GET /v1/sessions/:session_id/messages
// @Summary List session messages
// @Tags Chat
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]string
// @Router /v1/sessions/{session_id}/messages [get]
func (h *ChatHandler) History(c *gin.Context) {
	messages, err := h.service.History(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dto.MessagesFromDomain(messages)})
}

func (h *ChatHandler) streamTurn(c *gin.Context, params chat.SendParams) {
	writer := c.Writer
	flusher, ok := writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	sink := newSSESink(writer, flusher, h.log)
	if _, err := h.service.SendMessage(c.Request.Context(), params, sink); err != nil {
		// The sink already carried error and end events to the client.
		h.log.Error().Err(err).Str("session", params.SessionPublicID).Msg("conversation turn failed")
	}
}

// sseSink writes normalized chat events as server-sent events. Tool results
// arrive from concurrent goroutines, hence the mutex around each write.
type sseSink struct {
	writer  http.ResponseWriter
	flusher http.Flusher
	log     zerolog.Logger
	mu      sync.Mutex
}

func newSSESink(w http.ResponseWriter, flusher http.Flusher, log zerolog.Logger) *sseSink {
	return &sseSink{
		writer:  w,
		flusher: flusher,
		log:     log,
	}
}

func (s *sseSink) Emit(event chat.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("marshal SSE payload")
		return
	}

	fmt.Fprintf(s.writer, "event: %s\n", event.Type)
	fmt.Fprintf(s.writer, "data: %s\n\n", data)
	s.flusher.Flush()
}

var _ chat.Sink = (*sseSink)(nil)
