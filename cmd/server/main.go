package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mfriesen/actionreplay/internal/actions"
	"github.com/mfriesen/actionreplay/internal/config"
	"github.com/mfriesen/actionreplay/internal/crypto"
	"github.com/mfriesen/actionreplay/internal/domain"
	"github.com/mfriesen/actionreplay/internal/driver"
	"github.com/mfriesen/actionreplay/internal/filestore"
	"github.com/mfriesen/actionreplay/internal/logging"
	"github.com/mfriesen/actionreplay/internal/mongostore"
	"github.com/mfriesen/actionreplay/internal/registry"
	"github.com/mfriesen/actionreplay/internal/server"
	"github.com/mfriesen/actionreplay/internal/store"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

// setupStore always builds the file backend; when Mongo is configured it is
// layered as the primary with the file store as fallback. A Mongo that is
// configured but unreachable at boot degrades to file-only rather than
// failing startup.
func setupStore(cfg *config.Config) (domain.SessionStore, *mongostore.Store) {
	fileStore, err := filestore.New(cfg.SessionsFile)
	if err != nil {
		slog.Error("Failed to open sessions file", "path", cfg.SessionsFile, "error", err)
		os.Exit(1)
	}

	if !cfg.UseMongo {
		return fileStore, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoStore, err := mongostore.Connect(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		slog.Warn("Mongo unreachable, continuing with file store only", "error", err)
		return fileStore, nil
	}

	return store.NewFallback(mongoStore, fileStore), mongoStore
}

func setupCipher(cfg *config.Config) crypto.Cipher {
	if cfg.CredentialKey == "" {
		slog.Warn("No credential encryption key configured, storing credentials unencrypted")
		return crypto.Noop{}
	}
	cipher, err := crypto.NewAesGcm(cfg.CredentialKey)
	if err != nil {
		slog.Error("Failed to create credential cipher", "error", err)
		os.Exit(1)
	}
	return cipher
}

func runGracefulShutdown(srv *server.Server, browser *driver.Browser, mongo *mongostore.Store) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		browser.Close()

		if mongo != nil {
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := mongo.Close(closeCtx); err != nil {
				slog.Error("Failed to close mongo connection", "error", err)
			}
		}

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	sessionStore, mongo := setupStore(cfg)
	cipher := setupCipher(cfg)

	browser := driver.New(cfg.Headless)

	reg := registry.New(sessionStore, browser, cipher, clock, cfg.ProbeTimeout)

	executor := actions.NewExecutor(browser, reg, clock, cfg.ProbeTimeout, cfg.ActionTimeout)
	history := actions.NewHistory(clock, actions.DefaultCapacity)
	orchestrator := actions.NewOrchestrator(reg, executor, history, clock, cfg.ActionPacing)
	bulk := actions.NewBulk(orchestrator, clock, cfg.BulkPacing)

	srv := server.NewServer(cfg, reg, orchestrator, bulk, history, browser, sessionStore, clock)

	done := runGracefulShutdown(srv, browser, mongo)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
