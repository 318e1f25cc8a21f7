package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/auxilium/internal/api/handlers"
	"github.com/yoockh/auxilium/internal/api/middleware"
)

type Deps struct {
	Auth         gin.HandlerFunc
	Completion   *handlers.CompletionHandler
	Conversation *handlers.ConversationHandler
	Webhook      *handlers.WebhookHandler
}

// NewEngine builds the server router: panic recovery, access logging and every route.
func NewEngine(l *logrus.Logger, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(l), middleware.RequestLogger(l))
	RegisterRoutes(r, d)
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// signed by the identity provider, not by a user token
	r.POST("/webhooks/identity", d.Webhook.Identity)

	auth := r.Group("/")
	auth.Use(d.Auth)

	auth.POST("/completion", d.Completion.Completion)
	auth.POST("/chat", d.Completion.Chat)

	auth.GET("/conversations", d.Conversation.List)
	auth.POST("/conversations", d.Conversation.Create)
	auth.POST("/conversations/:id/exchanges", d.Conversation.AppendExchange)
	auth.GET("/conversations/:id/messages", d.Conversation.ListMessages)

	auth.GET("/relay-events", d.Conversation.RelayEvents)
}
