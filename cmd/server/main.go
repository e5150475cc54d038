// countrychat - countries agent chat server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/countrychat/internal/agent"
	"github.com/ashureev/countrychat/internal/api"
	"github.com/ashureev/countrychat/internal/config"
	"github.com/ashureev/countrychat/internal/countries"
	"github.com/ashureev/countrychat/internal/identity"
	"github.com/ashureev/countrychat/internal/middleware"
	"github.com/ashureev/countrychat/internal/runtime"
	"github.com/ashureev/countrychat/internal/store"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	// Initialize the agent runtime. The runner and its session service are
	// constructed once and shared across requests: runtime sessions live in
	// process memory and are rebuilt from durable records after a restart.
	llm, err := runtime.NewGemini(context.Background(), cfg.GoogleAPIKey, cfg.AgentModel)
	if err != nil {
		slog.Error("Failed to initialize model client", "error", err)
		os.Exit(1)
	}

	lookup := countries.NewLookup(cfg.DataDir)
	runner, err := runtime.NewRunner(runtime.Config{
		AppName:  cfg.AppName,
		Sessions: runtime.NewSessionService(),
		Model:    llm,
		Agent:    runtime.NewCountriesAgent(llm, lookup),
	})
	if err != nil {
		slog.Error("Failed to initialize agent runner", "error", err)
		os.Exit(1)
	}
	slog.Info("Agent runtime initialized", "app", cfg.AppName, "model", llm.Name())

	// Initialize handlers.
	turnService := agent.NewService(repo, runner)
	agentHandler := agent.NewHandler(turnService)
	apiHandler := api.NewHandler(repo, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	corsOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))
	r.Use(identity.Middleware(repo))

	apiHandler.RegisterRoutes(r)
	agentHandler.RegisterRoutes(r)

	// Create server.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // turns block on model and tool calls
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
