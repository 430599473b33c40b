package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/session"
	"github.com/searchchat/chat-api/internal/interfaces/httpserver/dto"
)

// SessionHandler exposes HTTP entrypoints for session management.
type SessionHandler struct {
	service *session.Service
	log     zerolog.Logger
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(service *session.Service, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		service: service,
		log:     log.With().Str("handler", "session").Logger(),
	}
}

// Create handles POST /v1/sessions
// @Summary Create a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param request body dto.CreateSessionRequest false "Create request"
// @Success 200 {object} dto.SessionPayload
// @Router /v1/sessions [post]
func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	sess, err := h.service.Create(c.Request.Context(), req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.SessionFromDomain(sess))
}

// List handles GET /v1/sessions
// @Summary List sessions
// @Tags Sessions
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /v1/sessions [get]
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	payload := make([]dto.SessionPayload, 0, len(sessions))
	for i := range sessions {
		payload = append(payload, dto.SessionFromDomain(&sessions[i]))
	}
	c.JSON(http.StatusOK, gin.H{"data": payload})
}

// Get handles GET /v1/sessions/:session_id
// @Summary Get a session by ID
// @Tags Sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} dto.SessionPayload
// @Failure 404 {object} map[string]string
// @Router /v1/sessions/{session_id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.service.Get(c.Request.Context(), c.Param("session_id"))
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SessionFromDomain(sess))
}

// Rename handles PATCH /v1/sessions/:session_id
// @Summary Rename a session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param session_id path string true "Session ID"
// @Param request body dto.RenameSessionRequest true "Rename request"
// @Success 200 {object} dto.SessionPayload
// @Failure 404 {object} map[string]string
// @Router /v1/sessions/{session_id} [patch]
func (h *SessionHandler) Rename(c *gin.Context) {
	var req dto.RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.service.Rename(c.Request.Context(), c.Param("session_id"), req.Title)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SessionFromDomain(sess))
}

// Delete handles DELETE /v1/sessions/:session_id
// @Summary Delete a session and its messages
// @Tags Sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /v1/sessions/{session_id} [delete]
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("session_id")); err != nil {
		h.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *SessionHandler) renderError(c *gin.Context, err error) {
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
