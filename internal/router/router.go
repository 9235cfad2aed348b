package router

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yellowcard/backend/internal/handlers"
	"github.com/anonto42/yellowcard/backend/internal/middleware"
)

// Dependencies are the services the HTTP layer is wired to
type Dependencies struct {
	Identity      handlers.IdentityProvider
	Verifier      middleware.TokenVerifier
	Members       handlers.MemberStore
	Feedback      handlers.FeedbackStore
	Notifications handlers.NotificationStore
	ReadState     handlers.ReadState
	Pusher        handlers.Pusher
	Chatbot       handlers.Chatbot
	JWTSecret     string
	JWTTTL        time.Duration
	Logger        *slog.Logger
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	logger := deps.Logger

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck)

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(deps.Identity, deps.Members, deps.Verifier, deps.JWTSecret, deps.JWTTTL, logger)
	authHandler.RegisterAuthRoutes(authGroup)
	logger.Info("Auth routes configured.")

	// --- Protected routes (require JWT authentication) ---
	api := e.Group("/api/v1")
	api.Use(middleware.JWTAuthMiddleware(deps.JWTSecret))

	userHandler := handlers.NewUserHandler(deps.Members, deps.Identity, deps.Verifier, logger)
	userHandler.RegisterProfileRoutes(api)

	feedHandler := handlers.NewFeedHandler(deps.ReadState, logger)
	feedHandler.RegisterFeedRoutes(api)
	logger.Info("Feed routes configured.")

	notificationHandler := handlers.NewNotificationHandler(deps.Notifications, deps.Pusher, logger)
	notificationHandler.RegisterNotificationRoutes(api)

	chatbotHandler := handlers.NewChatbotHandler(deps.Chatbot, logger)
	chatbotHandler.RegisterChatbotRoutes(api)

	feedbackHandler := handlers.NewFeedbackHandler(deps.Feedback, deps.Members, logger)
	feedbackHandler.RegisterFeedbackRoutes(api)

	logger.Info("All routes configured.")
}
