package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/searchchat/chat-api/internal/domain/models"
	"github.com/searchchat/chat-api/internal/interfaces/httpserver/dto"
)

// ModelHandler exposes the cached upstream model catalog.
type ModelHandler struct {
	catalog *models.Catalog
	log     zerolog.Logger
}

// NewModelHandler constructs the handler.
func NewModelHandler(catalog *models.Catalog, log zerolog.Logger) *ModelHandler {
	return &ModelHandler{
		catalog: catalog,
		log:     log.With().Str("handler", "model").Logger(),
	}
}

// List handles GET /v1/models
// @Summary List available models
// @Tags Models
// @Produce json
// @Success 200 {object} dto.ModelListPayload
// @Failure 502 {object} map[string]string
// @Router /v1/models [get]
func (h *ModelHandler) List(c *gin.Context) {
	list, err := h.catalog.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ModelListPayload{Object: "list", Data: list})
}
