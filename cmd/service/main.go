// cmd/service/main.go
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

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kylediaz/github-chat/internal/api"
	"github.com/kylediaz/github-chat/internal/config"
	"github.com/kylediaz/github-chat/internal/database"
	"github.com/kylediaz/github-chat/internal/github"
	"github.com/kylediaz/github-chat/internal/index"
	"github.com/kylediaz/github-chat/internal/syncer"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application startup error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Initialize structured logger
	logLevel := new(slog.LevelVar)
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// 2. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setLogLevel(cfg.LogLevel, logLevel)
	logger.Info("Configuration loaded successfully")

	// 3. Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 4. Initialize database connection and run migrations
	dbpool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer dbpool.Close()
	logger.Info("Database connection established")

	if err := runMigrations(cfg.DBURL); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	logger.Info("Database migrations applied successfully")

	// 5. Initialize application components
	ghClient, err := github.NewClient(cfg.GithubToken, cfg.GithubBaseURL, logger)
	if err != nil {
		return fmt.Errorf("failed to create github client: %w", err)
	}
	idxClient, err := index.NewClient(&index.ClientConfig{
		BaseURL: cfg.IndexAPIURL,
		APIKey:  cfg.IndexAPIKey,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create indexing client: %w", err)
	}

	queries := database.New(dbpool)
	refresher := syncer.NewRefresher(dbpool, ghClient, idxClient, syncer.TTLs{
		Repository:       cfg.RepoTTL,
		BranchHead:       cfg.BranchTTL,
		Tree:             cfg.TreeTTL,
		InvocationStatus: cfg.InvocationStatusTTL,
	}, logger)
	appSyncer := syncer.NewSyncer(queries, refresher, logger)

	// 6. Start the invocation poller in a separate goroutine
	if cfg.PollInterval > 0 {
		poller := syncer.NewPoller(queries, refresher, cfg.PollInterval, cfg.PollBatchSize, logger)
		go poller.Start(ctx)
	} else {
		logger.Info("Invocation poller disabled")
	}

	// 7. Serve the API until a shutdown signal arrives
	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: api.NewRouter(appSyncer, logger),
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		serverErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("Shutdown signal received. Exiting.")
	}

	// Allow in-flight requests and background refreshes to finish
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	return nil
}

func runMigrations(dbURL string) error {
	m, err := migrate.New("file://migrations", dbURL)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch level {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
