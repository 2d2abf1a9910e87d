// Package main is the entry point for the Chat Session Service.
// @title Chat Session Service API
// @version 1.0
// @description Headless conversation engine for embeddable chat widgets: streaming reconciliation, transcript state and conversation persistence in front of a prediction backend.
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/chatembed/session-service
// @contact.email support@chatembed.io

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /api/v1/session-service
// @schemes http https
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/chatembed/session-service/docs"
	"github.com/chatembed/session-service/internal/api/handlers"
	"github.com/chatembed/session-service/internal/api/middleware"
	"github.com/chatembed/session-service/internal/api/routes"
	"github.com/chatembed/session-service/internal/config"
	"github.com/chatembed/session-service/internal/core/store"
	memorystore "github.com/chatembed/session-service/internal/infrastructure/store/memory"
	mongostore "github.com/chatembed/session-service/internal/infrastructure/store/mongodb"
	redisstore "github.com/chatembed/session-service/internal/infrastructure/store/redis"
	"github.com/chatembed/session-service/internal/services/prediction"
	"github.com/chatembed/session-service/internal/services/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	ctx := context.Background()
	logger := newLogger(cfg.Log)

	// Initialize conversation store using factory pattern
	conversationStore, err := createStore(ctx, cfg.Store)
	if err != nil {
		log.Fatalf("failed to initialize conversation store: %v", err)
	}
	defer conversationStore.Close()

	// Ensure database indexes
	if ms, ok := conversationStore.(*mongostore.Store); ok {
		if err := ms.EnsureIndexes(ctx); err != nil {
			log.Printf("warning: failed to ensure indexes: %v", err)
		}
	}

	// Initialize prediction client
	predictionClient, err := prediction.NewClient(&prediction.Config{
		APIHost:    cfg.Backend.APIHost,
		HTTPClient: &http.Client{Timeout: cfg.Backend.Timeout},
	})
	if err != nil {
		log.Fatalf("failed to initialize prediction client: %v", err)
	}

	// Initialize session manager
	sessionManager, err := session.NewManager(session.ManagerConfig{
		Backend:        predictionClient,
		Store:          conversationStore,
		CustomerID:     cfg.Widget.CustomerID,
		WelcomeMessage: cfg.Widget.WelcomeMessage,
		ErrorMessage:   cfg.Widget.ErrorMessage,
		SettlingDelay:  cfg.Widget.SettlingDelay,
		ClearOnStart:   cfg.Widget.ClearOnStart,
		Logger:         logger,
	})
	if err != nil {
		log.Fatalf("failed to initialize session manager: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Setup router
	router := setupRouter(conversationStore, sessionManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	sessionManager.Shutdown()

	log.Println("Server exited")
}

// newLogger builds the service logger from configuration.
func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.Format == "console" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}

// createStore creates a conversation store based on the configuration.
func createStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	storeType := store.Type(cfg.Type)

	switch storeType {
	case store.TypeRedis:
		return redisstore.NewStore(redisstore.Config{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Password: cfg.Password,
			DB:       cfg.DB,
			TTL:      cfg.TTL,
		})
	case store.TypeMongoDB:
		return mongostore.NewStore(ctx, &mongostore.Config{
			URI:          cfg.URI,
			DatabaseName: cfg.Database,
		})
	case store.TypeMemory:
		return memorystore.NewStore(cfg.TTL), nil
	default:
		log.Fatalf("unsupported store type: %s", cfg.Type)
		return nil, nil
	}
}

// setupRouter creates and configures the Gin router.
func setupRouter(conversationStore store.Store, sessionManager *session.Manager) *gin.Engine {
	router := gin.New()

	// Create middleware
	loggingMw := middleware.NewLoggingMiddleware()
	errorMw := middleware.NewErrorMiddleware()

	router.Use(middleware.NewCORSMiddleware(middleware.DefaultCORSConfig()))

	// Create handlers
	healthHandler := handlers.NewHealthHandler(conversationStore)
	sessionsHandler := handlers.NewSessionsHandler(sessionManager)

	// Setup routes
	routesCfg := &routes.Config{
		HealthHandler:   healthHandler,
		SessionsHandler: sessionsHandler,
	}

	routes.SetupWithMiddleware(router, routesCfg, loggingMw, errorMw)

	// Swagger documentation endpoint
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}
