package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/thc1006/robotics-rag/pkg/auth"
	"github.com/thc1006/robotics-rag/pkg/config"
	"github.com/thc1006/robotics-rag/pkg/handlers"
	"github.com/thc1006/robotics-rag/pkg/middleware"
	"github.com/thc1006/robotics-rag/pkg/services"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Load configuration with validation
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Update logger level based on configuration
	logger = createLoggerWithLevel(cfg.LogLevel)

	logger.Info("Starting RAG chatbot service",
		slog.String("version", handlers.ServiceVersion),
		slog.String("port", cfg.APIPort),
		slog.String("llm_provider", cfg.LLMProvider),
		slog.String("chat_model", cfg.ChatModel),
		slog.Bool("auth_enabled", cfg.AuthEnabled),
		slog.Bool("cache_enabled", cfg.CacheEnabled),
	)

	// Initialize service components
	service := services.NewRAGService(cfg, logger)

	ctx := context.Background()
	if err := service.Initialize(ctx); err != nil {
		logger.Error("Failed to initialize service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	handler := handlers.NewRAGHandler(
		cfg, logger,
		service.Chat(), service.Embeddings(), service.Store(),
		service.Registry(), service.Metrics(),
	)

	server, err := setupHTTPServer(cfg, logger, handler)
	if err != nil {
		logger.Error("Failed to set up HTTP server", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Start server
	go func() {
		logger.Info("Server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed to start", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdown)
	defer cancel()

	if err := service.Shutdown(shutdownCtx); err != nil {
		logger.Error("Service shutdown failed", slog.String("error", err.Error()))
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.String("error", err.Error()))
	}

	logger.Info("Server exited")
}

// setupHTTPServer builds the router with CORS and optional auth middleware.
func setupHTTPServer(cfg *config.Config, logger *slog.Logger, handler *handlers.RAGHandler) (*http.Server, error) {
	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	// Middleware wraps the whole router so CORS preflights are answered
	// before route matching.
	var root http.Handler = auth.NewMiddleware(cfg.AuthEnabled, cfg.JWTSecretKey, logger).Middleware(router)

	if cfg.CORSEnabled {
		corsConfig := middleware.CORSConfig{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAge:         10 * time.Minute,
		}
		if err := middleware.ValidateConfig(corsConfig); err != nil {
			return nil, err
		}
		root = middleware.NewCORSMiddleware(corsConfig, logger).Middleware(root)
	}

	return &http.Server{
		Addr:         net.JoinHostPort(cfg.APIHost, cfg.APIPort),
		Handler:      root,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.RequestTimeout,
		IdleTimeout:  120 * time.Second,
	}, nil
}

// createLoggerWithLevel creates a logger with the specified level
func createLoggerWithLevel(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
}
