package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/searchchat/chat-api/internal/interfaces/httpserver/handlers"
)

func registerModelRoutes(router gin.IRoutes, handler *handlers.ModelHandler) {
	router.GET("/models", handler.List)
}
