package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/searchchat/chat-api/internal/interfaces/httpserver/handlers"
)

func registerSessionRoutes(router gin.IRouter, sessions *handlers.SessionHandler, chat *handlers.ChatHandler) {
	router.POST("/sessions", sessions.Create)
	router.GET("/sessions", sessions.List)
	router.GET("/sessions/:session_id", sessions.Get)
	router.PATCH("/sessions/:session_id", sessions.Rename)
	router.DELETE("/sessions/:session_id", sessions.Delete)
	router.POST("/sessions/:session_id/messages", chat.SendMessage)
	router.GET("/sessions/:session_id/messages", chat.History)
}
