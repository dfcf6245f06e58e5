package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"meetly/internal/bootstrap"
	"meetly/internal/sessionsync"
	"meetly/pkg/config"
)

const ServiceName = "session-sync"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting session sync consumer",
		"topic", cfg.SessionStatusTopic,
		"group", cfg.SessionStatusGroup,
	)
	services := bootstrap.New(cfg)
	defer services.Close()

	handler := sessionsync.NewHandler(services.Meetings, cfg.Log)
	consumer := bootstrap.NewConsumer(cfg, services.Metrics, handler.Handle)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Session sync consumer stopped", "error", err)
	}
	if err := consumer.Close(); err != nil {
		cfg.Log.Error("Failed to close kafka consumer", "error", err)
	}
	cfg.Log.Info("Session sync consumer stopped")
}
