package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/r3elabs/execforge/internal/app"
	core "github.com/r3elabs/execforge/internal/core/service"
	"github.com/r3elabs/execforge/internal/storage"
	"github.com/r3elabs/execforge/internal/storage/memory"
	"github.com/r3elabs/execforge/internal/storage/postgres"
	"github.com/r3elabs/execforge/pkg/config"
	"github.com/r3elabs/execforge/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logLevel := strings.TrimSpace(cfg.Logging.Level)
	if logLevel == "" {
		logLevel = "info"
	}
	appLog := logger.New(logger.LoggingConfig{
		Level:      logLevel,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})

	store, closeStore, err := openStore(cfg, appLog)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer closeStore()

	application, err := app.New(cfg, store, appLog)
	if err != nil {
		log.Fatalf("initialise application: %v", err)
	}

	rootCtx := context.Background()
	if err := application.Start(rootCtx); err != nil {
		log.Fatalf("start application: %v", err)
	}
	appLog.WithField("addr", addrOf(cfg)).Info("execforge engine listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := application.Stop(shutdownCtx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

// openStore opens the configured backend: postgres with a migration retry
// loop per spec.md §6's exit-code rule (non-zero exit after exhausting
// retries), or the in-memory store when no DSN is configured.
func openStore(cfg *config.Config, appLog *logger.Logger) (storage.Store, func(), error) {
	dsn := strings.TrimSpace(cfg.Database.DSN)
	if dsn == "" {
		appLog.Warn("no database DSN configured; using in-memory storage")
		return memory.New(), func() {}, nil
	}

	db, err := postgres.Open(dsn)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if cfg.Database.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetime) * time.Second)
	}

	if cfg.Database.MigrateOnStart {
		policy := core.MigrationRetryPolicy
		if cfg.Database.MigrateAttempts > 0 {
			policy.Attempts = cfg.Database.MigrateAttempts
		}
		if cfg.Database.MigrateBackoffMS > 0 {
			policy.InitialBackoff = time.Duration(cfg.Database.MigrateBackoffMS) * time.Millisecond
		}
		migrateCtx := context.Background()
		if err := core.Retry(migrateCtx, policy, func() error {
			return postgres.Migrate(db.DB)
		}); err != nil {
			_ = db.Close()
			log.Fatalf("apply migrations after %d attempts: %v", policy.Attempts, err)
		}
	}

	return postgres.New(db), func() { _ = db.Close() }, nil
}

func addrOf(cfg *config.Config) string {
	host := cfg.Server.Host
	if host == "" {
		host = "0.0.0.0"
	}
	port := cfg.Server.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", host, port)
}
