package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"smartbuy/internal/api"
	"smartbuy/internal/cache"
	"smartbuy/internal/database"
	"smartbuy/internal/dataset"
	"smartbuy/internal/scheduler"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis API server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	store := dataset.NewStore(db, logger)
	sched := scheduler.NewScheduler(store, cfg.Dataset.RefreshInterval, logger)
	if err := sched.RunNow(ctx, scheduler.JobTypeStartup); err != nil {
		// The server still starts; /api/health reports loading until a refresh succeeds.
		logger.WithError(err).Error("Initial dataset load failed")
	}
	sched.Start()
	defer sched.Stop()

	resultCache, closeCache := openCache(ctx)
	defer closeCache()

	handler := api.NewHandler(store, sched, resultCache, cfg, logger)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewRouter(handler, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("Starting server on port %d", cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func openDatabase() (*database.Database, error) {
	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	logger.Infof("Using database at: %s", cfg.Database.Path)

	db, err := database.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.MigrateSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return db, nil
}

// openCache connects to Redis when configured. An unreachable server
// disables caching instead of failing startup.
func openCache(ctx context.Context) (cache.ResultCache, func()) {
	if cfg.Redis.Addr == "" {
		return cache.NopCache{}, func() {}
	}

	rc := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("Redis unavailable, result cache disabled")
		rc.Close()
		return cache.NopCache{}, func() {}
	}

	logger.WithField("addr", cfg.Redis.Addr).Info("Result cache enabled")
	return rc, func() {
		if err := rc.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close result cache")
		}
	}
}
