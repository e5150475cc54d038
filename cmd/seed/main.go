// seed upserts an initial user so the login existence check can pass.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/ashureev/countrychat/internal/config"
	"github.com/ashureev/countrychat/internal/domain"
	"github.com/ashureev/countrychat/internal/store"
	"github.com/joho/godotenv"
)

func main() {
	username := flag.String("username", "user1", "username to seed")
	flag.Parse()

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

	if err := repo.UpsertUser(context.Background(), &domain.User{
		ID:        *username,
		CreatedAt: time.Now(),
	}); err != nil {
		slog.Error("Seed failed", "username", *username, "error", err)
		os.Exit(1)
	}

	slog.Info("Seed complete", "username", *username)
}
