package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lennartp/chatstore/internal/config"
	"github.com/lennartp/chatstore/internal/middleware"
)

// HealthChecker reports backing-store connectivity for the health endpoint.
type HealthChecker func(ctx context.Context) error

// Handlers bundles everything the router needs. Media is optional; when
// nil the media routes respond 501 instead of being absent, so clients
// get a clear signal rather than a 404.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Conversations *ConversationHandler
	WS            *WSHandler
	Media         *MediaHandler
	AuthLimiter   *middleware.LimiterStore
	Health        HealthChecker
}

// NewRouter wires the full HTTP surface. Signup and login are public and
// rate limited; everything else under /v1 requires a valid token.
func NewRouter(h Handlers, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.GET("/v1/health", func(c *gin.Context) {
		if h.Health != nil {
			if err := h.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := r.Group("/v1/auth")
	public.Use(middleware.RateLimit(h.AuthLimiter))
	public.POST("/signup", h.Auth.Signup)
	public.POST("/login", h.Auth.Login)

	v1 := r.Group("/v1")
	v1.Use(middleware.AuthMiddleware(cfg.JWTSecret))

	v1.GET("/users", h.Users.List)
	v1.GET("/users/exists", h.Users.Exists)

	v1.POST("/conversations", h.Conversations.Create)
	v1.GET("/conversations", h.Conversations.List)
	v1.DELETE("/conversations/:id", h.Conversations.Delete)
	v1.GET("/conversations/:id/messages", h.Conversations.Messages)
	v1.POST("/conversations/:id/messages", h.Conversations.Append)

	v1.GET("/ws/conversations", h.WS.Conversations)
	v1.GET("/ws/conversations/:id/messages", h.WS.Messages)

	if h.Media != nil {
		v1.POST("/media/:kind", h.Media.Upload)
		v1.GET("/media/url", h.Media.URL)
	} else {
		unavailable := func(c *gin.Context) {
			c.JSON(http.StatusNotImplemented, gin.H{"error": "media storage not configured"})
		}
		v1.POST("/media/:kind", unavailable)
		v1.GET("/media/url", unavailable)
	}

	return r
}
