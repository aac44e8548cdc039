package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/classpulse/poll-service/config"
	"github.com/classpulse/poll-service/internal/domain"
	"github.com/classpulse/poll-service/internal/logger"
	"github.com/classpulse/poll-service/internal/postgres"
	"github.com/classpulse/poll-service/internal/service"
	httpx "github.com/classpulse/poll-service/internal/transport/http"
	"github.com/classpulse/poll-service/internal/transport/ws"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting poll-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- services ---
	polls := service.NewPollService(cfg.Poll.DefaultTimeLimitSec, cfg.Poll.MaxTimeLimitSec)
	registry := service.NewRegistryService()
	feed := service.NewFeedService(cfg.Chat.HistoryLimit)

	// --- poll history (optional) ---
	ctx := context.Background()
	var history httpx.HistoryLister
	if cfg.Postgres.DSN != "" {
		db, err := postgres.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		defer db.Close()

		historyRepo := postgres.NewHistoryRepository(db.Pool)
		history = historyRepo
		polls.OnFinalized(func(sum domain.PollSummary) {
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			// best-effort: the in-memory finalize already stands
			if err := historyRepo.SavePollSummary(saveCtx, sum); err != nil {
				slog.Error("save poll summary failed", "poll_id", sum.PollID, "err", err)
			}
		})
	} else {
		slog.Info("poll history disabled (no postgres dsn)")
	}

	// --- WS hub & event router ---
	hub := ws.NewHub()
	wsServer := ws.NewServer(hub, polls, registry, feed, cfg.Chat.MaxMessageLen, cfg.Chat.SystemCooldownSec)

	// --- HTTP ---
	handler := httpx.NewHandler(polls, registry, feed, hub, history, cfg.Chat.MaxMessageLen, cfg.Chat.SystemCooldownSec)
	router := httpx.NewRouter(handler, wsServer)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}
