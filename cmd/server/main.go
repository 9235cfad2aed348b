package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/yellowcard/backend/internal/chatbot"
	"github.com/anonto42/yellowcard/backend/internal/publisher"
	"github.com/anonto42/yellowcard/backend/internal/push"
	"github.com/anonto42/yellowcard/backend/internal/readstate"
	"github.com/anonto42/yellowcard/backend/internal/repositories"
	"github.com/anonto42/yellowcard/backend/internal/router"
	"github.com/anonto42/yellowcard/backend/pkg/config"
	"github.com/anonto42/yellowcard/backend/pkg/firebase"
	"github.com/anonto42/yellowcard/backend/validators"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger := config.NewLogger(cfg.LogLevel)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

// run wires every dependency and serves until a signal arrives. Resources are
// released through defers, so it returns errors instead of exiting.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database connections
	db, err := config.InitDB(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize databases: %w", err)
	}
	defer db.CloseDB()

	// Initialize Firebase
	firebaseApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, logger)
	if err != nil {
		return fmt.Errorf("initialize firebase: %w", err)
	}
	defer firebaseApp.Close()

	// --- Read markers ---
	var kv readstate.KV
	var devices repositories.DeviceRepository
	if db.Postgres != nil {
		kv = repositories.NewPostgresKVRepository(db.Postgres)
		devices = repositories.NewPostgresDeviceRepository(db.Postgres)
	} else {
		sqliteKV, err := repositories.NewSQLiteKVRepository(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite read markers at %s: %w", cfg.SQLitePath, err)
		}
		defer sqliteKV.Close()
		kv = sqliteKV
		devices = repositories.NewMemoryDeviceRepository()
	}

	// --- Badge sinks ---
	var sinks []readstate.BadgeSink
	if cfg.RabbitMQ.URL != "" {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer rabbitMQ.Close()
		sinks = append(sinks, rabbitMQ)
	}

	content := repositories.NewFirestoreContentRepository(firebaseApp.Firestore, logger)
	hub := readstate.NewHub(
		readstate.NewFeed(content, logger),
		readstate.NewMarkers(kv, logger),
		readstate.NewEmitter(logger, sinks...),
		logger,
	)

	// --- Chatbot ---
	script := chatbot.DefaultScript()
	if cfg.Chatbot.ScriptPath != "" {
		script, err = chatbot.LoadScript(cfg.Chatbot.ScriptPath)
		if err != nil {
			return fmt.Errorf("load chatbot script %s: %w", cfg.Chatbot.ScriptPath, err)
		}
	}
	var remote chatbot.Responder
	if cfg.Chatbot.BackendURL != "" {
		remote = chatbot.NewRemoteClient(cfg.Chatbot.BackendURL, cfg.Chatbot.Timeout)
	}
	var chats repositories.ChatRepository = repositories.NopChatRepository{}
	if db.Mongo != nil {
		chats = repositories.NewMongoChatRepository(db.Mongo.Database(cfg.MongoDatabase))
	}
	bot := chatbot.New(script, remote, chats, logger)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	config.SetupMiddleware(e, logger)

	members := repositories.NewFirestoreMemberRepository(firebaseApp.Firestore)
	router.SetupRoutes(e, router.Dependencies{
		Identity:      firebaseApp.AuthClient,
		Verifier:      firebaseApp.AuthClient,
		Members:       members,
		Feedback:      repositories.NewFirestoreFeedbackRepository(firebaseApp.Firestore),
		Notifications: content,
		ReadState:     hub,
		Pusher:        push.NewService(firebaseApp.MessagingClient, devices, cfg.PushTopic, logger),
		Chatbot:       bot,
		JWTSecret:     cfg.JWTSecret,
		JWTTTL:        cfg.JWTTTL,
		Logger:        logger,
	})

	// Start server
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("server stopped: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	hub.Close()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
	return runErr
}
