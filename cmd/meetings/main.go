package main

import (
	"context"

	accounthandler "meetly/internal/accounts/handler"
	"meetly/internal/bootstrap"
	providerhandler "meetly/internal/conferencing/handler"
	"meetly/internal/health"
	locationhandler "meetly/internal/locations/handler"
	meetinghandler "meetly/internal/meetings/handler"
	"meetly/pkg/app"
	"meetly/pkg/config"
	"meetly/pkg/kafka"
)

const ServiceName = "meetings"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()

	cfg.Log.Info("Starting Meetings service")
	services := bootstrap.New(cfg)

	healthHandler := health.NewHandler(cfg.Client.Mongo, cfg.Log)
	if brokers := services.KafkaBrokers; len(brokers) > 0 {
		healthHandler.AddCheck("kafka", func(ctx context.Context) error {
			return kafka.Ping(ctx, brokers)
		})
	}

	serverApp := app.NewApplication(cfg)
	serverApp.AllowAnonymous(meetinghandler.PublicPrefix)
	serverApp.OnShutdown(services.Close)
	serverApp.SetApp(healthHandler,
		meetinghandler.NewMeetingHandler(services.Meetings, cfg.Log),
		meetinghandler.NewPublicHandler(services.Meetings, cfg.PublicBaseURL, cfg.Log),
		locationhandler.NewLocationHandler(services.Locations, cfg.Log),
		accounthandler.NewAccountHandler(services.Accounts, cfg.Log),
		providerhandler.NewProviderHandler(services.Accounts, services.Gateway, cfg.Log),
	)
	serverApp.Run()
}
