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

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/radiolink/radiolink/internal/app"
	"github.com/radiolink/radiolink/internal/config"
	"github.com/radiolink/radiolink/internal/logging"
	"github.com/radiolink/radiolink/internal/server"
)

func runGracefulShutdown(srv *server.Server, svc *app.Service) <-chan struct{} {
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

		svc.Stop()
		close(done)
	}()

	return done
}

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized.
		log.Fatalf("Failed to load config: %v", err)
	}

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	if cfg.RobloxServerKey == "" {
		slog.Warn("ROBLOX_SERVER_KEY is empty; all game-server calls will be rejected")
	}
	if cfg.WebTokenSecret == "" {
		slog.Warn("WEB_TOKEN_SECRET is empty; token auth is DISABLED (dev mode)")
	}

	clock := clockwork.NewRealClock()
	svc := app.NewService(cfg, clock)
	svc.Start()

	srv := server.NewServer(cfg, svc)
	done := runGracefulShutdown(srv, svc)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
