/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the station ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags and load configuration
  2. Build the zap logger
  3. Open (and migrate) the SQLite store
  4. Build services: sales, reports, dashboard, backup, auth
  5. Configure HTTP router and start the backup schedule
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  YAML config file (optional)
  -port    HTTP server port (overrides server.port)
  -db      SQLite database path (overrides database.path)
           Use ":memory:" for an in-memory database (no backups)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the backup schedule
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Checkpoint and close the database

EXAMPLES:
  ./server -db="./data/slnfs_crm.db"
  ./server -config=station.yaml -port=3000
  SLNFS_BACKUP_INTERVAL=24h ./server

SEE ALSO:
  - config/config.go: Keys and environment variables
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slnfs/station-ledger/api"
	"github.com/slnfs/station-ledger/auth"
	"github.com/slnfs/station-ledger/backup"
	"github.com/slnfs/station-ledger/config"
	"github.com/slnfs/station-ledger/dashboard"
	"github.com/slnfs/station-ledger/ledger"
	"github.com/slnfs/station-ledger/logger"
	"github.com/slnfs/station-ledger/report"
	"github.com/slnfs/station-ledger/sales"
	"github.com/slnfs/station-ledger/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.Int("port", 0, "HTTP server port (overrides config)")
	dbPath := flag.String("db", "", "SQLite database path (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Database.Path = *dbPath
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	// Initialize store
	store, err := sqlite.New(cfg.Database.Path, sqlite.WithLogger(log))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	engine := ledger.NewEngine(store)

	bk, err := newBackupService(ctx, cfg, store, log)
	if err != nil {
		return err
	}

	authn, err := auth.New(auth.Config{
		Username: cfg.Auth.Username,
		Password: cfg.Auth.Password,
		Secret:   cfg.Auth.Secret,
		TTL:      cfg.Auth.SessionTTL,
	})
	if err != nil {
		return err
	}
	if cfg.Auth.Secret == "" {
		log.Warnw("auth.secret not set, sessions end on restart")
	}

	handler := api.NewHandler(api.Services{
		Store:     store,
		Sales:     sales.NewService(store, sales.WithLogger(log)),
		Reports:   report.NewService(engine, report.WithStation(cfg.Station.Name)),
		Dashboard: dashboard.NewComposer(engine),
		Backup:    bk,
		Auth:      authn,
		Logger:    log,
	})
	router := api.NewRouter(handler, api.RouterOptions{AllowedOrigins: cfg.Server.CorsAllowedOrigins})

	var scheduler *backup.Scheduler
	if bk != nil {
		scheduler = backup.NewScheduler(bk, cfg.Backup.Interval, log)
		scheduler.Start()
		defer scheduler.Stop()
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Infow("server starting", "addr", server.Addr, "db", store.Path(), "station", cfg.Station.Name)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		log.Infow("shutting down", "signal", sig.String())
	case err := <-errc:
		return fmt.Errorf("server failed: %w", err)
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := store.Checkpoint(shutdownCtx); err != nil {
		log.Warnw("final checkpoint failed", "error", err)
	}

	log.Infow("server stopped")
	return nil
}

// newBackupService returns nil for an in-memory store.
func newBackupService(ctx context.Context, cfg *config.Config, store *sqlite.Store, log *logger.Logger) (*backup.Service, error) {
	if store.Path() == "" || store.Path() == ":memory:" {
		log.Warnw("in-memory database, backups disabled")
		return nil, nil
	}

	opts := []backup.Option{
		backup.WithDir(cfg.Backup.Dir),
		backup.WithMinFreeBytes(cfg.Backup.MinFreeBytes),
		backup.WithLogger(log),
	}
	if cfg.Backup.S3.Enabled {
		up, err := backup.NewS3Uploader(ctx, cfg.Backup.S3)
		if err != nil {
			return nil, fmt.Errorf("backup upload: %w", err)
		}
		opts = append(opts, backup.WithUploader(up))
		log.Infow("offsite backups enabled", "bucket", cfg.Backup.S3.Bucket)
	}
	return backup.NewService(store, sqlite.Tables, opts...), nil
}
