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

	"github.com/cviz/relay/internal/bus"
	"github.com/cviz/relay/internal/config"
	"github.com/cviz/relay/internal/logging"
	"github.com/cviz/relay/internal/relay"
	"github.com/cviz/relay/internal/router"
)

func main() {
	// Initialize structured logging (reads LOGGING_LEVEL env var)
	logging.Initialize()

	// Load configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := relay.NewHub(bus.Dialer{Endpoint: cfg.BusEndpoint}, relay.HubConfig{
		SendBuffer: cfg.ClientSendBuffer,
		RedialWait: cfg.BusRedialWait,
	})

	// Pin the configured startup topics before serving clients
	topics, err := config.LoadTopics(cfg.TopicsFile)
	if err != nil {
		slog.Error("failed to load topics file",
			slog.Any("error", logging.WrapError(err, "load topics")))
		os.Exit(1)
	}
	for _, t := range topics {
		hub.Register(t.Topic, t.HistoryLimit, true)
		slog.Info("pinned topic",
			slog.String("topic", t.Topic), slog.Int("history_limit", t.HistoryLimit))
	}

	go hub.Run(ctx)

	r := router.New(cfg, hub)
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("starting relay",
		slog.String("addr", srv.Addr),
		slog.String("bus_endpoint", cfg.BusEndpoint))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	hub.Shutdown()
	slog.Info("relay stopped")
}
