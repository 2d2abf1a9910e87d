// Package routes defines the HTTP routes for the chat session service.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/chatembed/session-service/internal/api/handlers"
	"github.com/chatembed/session-service/internal/api/middleware"
)

// Config holds the dependencies for setting up routes.
type Config struct {
	HealthHandler   *handlers.HealthHandler
	SessionsHandler *handlers.SessionsHandler
}

// Setup configures all routes on the Gin engine.
func Setup(r *gin.Engine, cfg *Config) {
	// API v1 routes - all routes under /api/v1/session-service
	v1 := r.Group("/api/v1/session-service")
	{
		// Health check routes
		v1.GET("/health", cfg.HealthHandler.Health)
		v1.GET("/ready", cfg.HealthHandler.Ready)
		v1.GET("/live", cfg.HealthHandler.Live)

		// Conversation session routes, keyed by flow id. The widget
		// surface is anonymous; sessions carry their own conversation id.
		sessions := v1.Group("/sessions/:flowId")
		{
			sessions.POST("/messages", cfg.SessionsHandler.SubmitMessage)
			sessions.GET("/history", cfg.SessionsHandler.GetHistory)
			sessions.DELETE("", cfg.SessionsHandler.ClearSession)
			sessions.POST("/abort", cfg.SessionsHandler.AbortTurn)
			sessions.POST("/action", cfg.SessionsHandler.ResolveAction)
			sessions.POST("/lead", cfg.SessionsHandler.SaveLead)
			sessions.POST("/feedback", cfg.SessionsHandler.RateMessage)
			sessions.POST("/ingest", cfg.SessionsHandler.IngestFiles)
			sessions.GET("/disclaimer", cfg.SessionsHandler.GetDisclaimer)
			sessions.POST("/disclaimer", cfg.SessionsHandler.AcceptDisclaimer)
			sessions.GET("/events", cfg.SessionsHandler.StreamEvents)
		}
	}
}

// SetupWithMiddleware sets up routes with common middleware.
func SetupWithMiddleware(r *gin.Engine, cfg *Config, loggingMw *middleware.LoggingMiddleware, errorMw *middleware.ErrorMiddleware) {
	// Apply global middleware
	r.Use(loggingMw.Logger())
	r.Use(errorMw.Recovery())
	r.Use(gin.Recovery())

	// Setup routes
	Setup(r, cfg)
}
