package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/hostchat/internal/middleware"
	"github.com/lalith-99/hostchat/internal/models"
	"github.com/lalith-99/hostchat/internal/service"
	"go.uber.org/zap"
)

// Services is everything the handlers call into.
type Services struct {
	Users         *service.UserService
	Messages      *service.MessageService
	Contacts      *service.ContactService
	Fanout        *service.FanoutService
	Notifications *service.NotificationService
	Stats         *service.StatsService
}

type RouterConfig struct {
	Services        Services
	JWTSecret       string
	TokenTTL        time.Duration
	PollInterval    time.Duration
	LongPollTimeout time.Duration
	Logger          *zap.Logger

	// Health checks the backing store. Nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter builds the gin engine with every route. /v1/health and the
// register/login endpoints are public; everything else needs a JWT.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(cfg.Logger), gin.Recovery())

	r.GET("/v1/health", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request.Context()); err != nil {
				cfg.Logger.Warn("health check failed", zap.Error(err))
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s := cfg.Services
	authHandler := NewAuthHandler(s.Users, cfg.JWTSecret, cfg.TokenTTL, cfg.Logger)
	userHandler := NewUserHandler(s.Users, cfg.Logger)
	messageHandler := NewMessageHandler(s.Messages, cfg.Logger)
	fanoutHandler := NewFanoutHandler(s.Fanout, cfg.Logger)
	contactHandler := NewContactHandler(s.Contacts, cfg.PollInterval, cfg.LongPollTimeout, cfg.Logger)
	notificationHandler := NewNotificationHandler(s.Notifications, cfg.Logger)
	statsHandler := NewStatsHandler(s.Stats, cfg.Logger)

	public := r.Group("/v1/auth")
	public.POST("/register", authHandler.Register)
	public.POST("/login", authHandler.Login)

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))
	admin := middleware.RequireRole(models.RoleAdmin)

	v1.POST("/auth/logout", authHandler.Logout)

	v1.GET("/users", userHandler.List)
	v1.GET("/users/me", userHandler.GetMe)
	v1.GET("/users/:id", userHandler.Get)
	v1.POST("/users", admin, userHandler.Create)
	v1.PUT("/users/:id", userHandler.Update)
	v1.DELETE("/users/:id", admin, userHandler.Delete)

	v1.POST("/messages", messageHandler.Create)
	v1.GET("/messages/:userA/:userB", messageHandler.Conversation)
	v1.DELETE("/messages/:userA/:userB", messageHandler.DeleteConversation)
	v1.PUT("/messages/read/:sender/:receiver", messageHandler.MarkRead)
	v1.PUT("/messages/delivered/:id", messageHandler.MarkDelivered)

	v1.POST("/broadcast", admin, fanoutHandler.Broadcast)
	v1.POST("/financial-notifications", admin, fanoutHandler.SendFinancial)

	v1.GET("/contacts", contactHandler.List)
	v1.POST("/contacts/:id/open", contactHandler.Open)

	v1.GET("/notifications", notificationHandler.List)
	v1.POST("/notifications", admin, notificationHandler.Create)
	v1.PUT("/notifications/:id/read", notificationHandler.MarkRead)

	v1.GET("/stats", admin, statsHandler.Dashboard)

	return r
}
