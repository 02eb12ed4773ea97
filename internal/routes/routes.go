package routes

import (
	"github.com/damoang/angple-messenger/internal/handler"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Read         *handler.ReadHandler
	Inbox        *handler.InboxHandler
	Block        *handler.BlockHandler
	Report       *handler.ReportHandler
	WS           *handler.WSHandler
	Health       *handler.HealthHandler
}

// Options are the cross-cutting dependencies of the route table
type Options struct {
	JWT               *jwt.Manager
	Actors            repository.ActorRepository
	Redis             *redis.Client // nil disables rate limiting
	SendRatePerMinute int
}

// Setup configures all API routes
func Setup(router *gin.Engine, h Handlers, opts Options) {
	handler.RegisterValidators()

	router.GET("/health", h.Health.Check)

	authed := []gin.HandlerFunc{middleware.JWTAuth(opts.JWT), middleware.ActingAs(opts.Actors)}
	router.GET("/ws", append(authed, h.WS.Connect)...)

	api := router.Group("/api/v1", authed...)

	conversations := api.Group("/conversations")
	{
		conversations.POST("", h.Conversation.Resolve)
		conversations.GET("/:id", h.Conversation.Get)
		conversations.DELETE("/:id/membership", h.Conversation.Leave)
		conversations.POST("/:id/archive", h.Conversation.Archive)
		conversations.DELETE("/:id/archive", h.Conversation.Unarchive)
		conversations.PUT("/:id/folder", h.Conversation.SetFolder)

		conversations.GET("/:id/messages", h.Message.List)
		conversations.POST("/:id/messages",
			middleware.RateLimitPerActor(opts.Redis, "messenger:ratelimit:send:", opts.SendRatePerMinute),
			h.Message.Send)

		conversations.POST("/:id/read", h.Read.MarkRead)
		conversations.GET("/:id/unread", h.Read.Unread)
	}

	messages := api.Group("/messages")
	{
		messages.PATCH("/:id", h.Message.Edit)
		messages.DELETE("/:id", h.Message.Delete)
	}

	inbox := api.Group("/inbox")
	{
		inbox.GET("", h.Inbox.List)
		inbox.GET("/changes", h.Inbox.Changes)
		inbox.GET("/unread", h.Read.Total)
		inbox.GET("/settings", h.Inbox.Settings)
		inbox.PUT("/settings", h.Inbox.UpdateSettings)
	}

	blocks := api.Group("/blocks")
	{
		blocks.GET("", h.Block.List)
		blocks.POST("", h.Block.Block)
		blocks.DELETE("/:actor_id", h.Block.Unblock)
	}

	api.POST("/reports", h.Report.Submit)
}
