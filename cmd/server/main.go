/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the SBU ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env file + environment)
  2. Build the zap logger (stderr, optional rotating file)
  3. Open the SQLite store (migrates on open)
  4. Bootstrap the admin account if ADMIN_USERNAME is set
  5. Connect the MongoDB archive if MONGODB_URI is set
  6. Start the digest schedule if DIGEST_ENABLED
  7. Serve HTTP until SIGINT/SIGTERM

COMMAND-LINE FLAGS:
  -env     Path to a .env file (default: .env, missing file is fine)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the digest, close the archive and the database

SEE ALSO:
  - config/config.go: Environment variables
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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/sbu-ledger/api"
	"github.com/warp/sbu-ledger/archive/mongodb"
	"github.com/warp/sbu-ledger/auth"
	"github.com/warp/sbu-ledger/config"
	"github.com/warp/sbu-ledger/ledger"
	"github.com/warp/sbu-ledger/logger"
	"github.com/warp/sbu-ledger/store/sqlite"
)

func main() {
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	baseLogger := logger.Must(logger.New(logger.Options{Level: cfg.Log.Level, File: cfg.Log.File}))
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		baseLogger.Fatal("failed to initialize database", zap.String("path", cfg.Database.Path), zap.Error(err))
	}
	defer store.Close()

	if err := bootstrapAdmin(context.Background(), store, cfg.Auth, baseLogger); err != nil {
		baseLogger.Fatal("failed to bootstrap admin", zap.Error(err))
	}

	sinks := []ledger.SnapshotStore{store}
	if cfg.MongoDB.URI != "" {
		connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		archive, err := mongodb.Connect(connectCtx, cfg.MongoDB.URI, cfg.MongoDB.DBName)
		cancel()
		if err != nil {
			baseLogger.Fatal("failed to connect mongodb archive", zap.Error(err))
		}
		defer func() {
			if err := archive.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		sinks = append(sinks, archive)
		baseLogger.Info("mongodb archive enabled", zap.String("db", cfg.MongoDB.DBName))
	}

	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	handler := api.NewHandler(store, tokens, logger.Named(baseLogger, "api"))
	router := api.NewRouter(handler, cfg.Server.CORSOrigins)

	if cfg.Digest.Enabled {
		digest := api.NewDigest(store, handler.Reports, logger.Named(baseLogger, "digest"), sinks...)
		if err := digest.Start(cfg.Digest.Schedule); err != nil {
			baseLogger.Fatal("failed to start digest", zap.Error(err))
		}
		defer digest.Stop()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("db", cfg.Database.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	baseLogger.Info("server stopped")
}

// bootstrapAdmin creates the configured admin account on first start. An
// existing account with that username is left alone.
func bootstrapAdmin(ctx context.Context, registry ledger.Registry, cfg config.AuthConfig, log *zap.Logger) error {
	if cfg.AdminUsername == "" {
		return nil
	}

	existing, err := registry.GetStaffByUsername(ctx, cfg.AdminUsername)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	err = registry.SaveStaff(ctx, ledger.StaffMember{
		ID:           ledger.StaffID(uuid.NewString()),
		FullName:     "Administrator",
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		Role:         ledger.RoleAdmin,
		Active:       true,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return err
	}
	log.Info("admin account created", zap.String("username", cfg.AdminUsername))
	return nil
}
