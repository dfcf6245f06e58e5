// Package bootstrap assembles the meetly services from configuration. It is
// shared by the HTTP binary and the session-sync consumer.
package bootstrap

import (
	accountrepo "meetly/internal/accounts/repository"
	accountservice "meetly/internal/accounts/service"
	accountvalidator "meetly/internal/accounts/validator"
	"meetly/internal/conferencing"
	sessionrepo "meetly/internal/conferencing/repository"
	locationrepo "meetly/internal/locations/repository"
	locationservice "meetly/internal/locations/service"
	locationvalidator "meetly/internal/locations/validator"
	meetingrepo "meetly/internal/meetings/repository"
	meetingservice "meetly/internal/meetings/service"
	meetingvalidator "meetly/internal/meetings/validator"
	"meetly/internal/scheduler"
	userrepo "meetly/internal/users/repository"
	"meetly/pkg/config"
	"meetly/pkg/kafka"
	kafka_config "meetly/pkg/kafka/config"
	kafka_middleware "meetly/pkg/kafka/middleware"
	"meetly/pkg/metrics"
)

type Services struct {
	Metrics   metrics.Recorder
	Publisher kafka.Publisher
	Gateway   *conferencing.Gateway
	Accounts  accountservice.AccountService
	Locations locationservice.LocationService
	Meetings  meetingservice.MeetingService
	// KafkaBrokers is empty when events are disabled.
	KafkaBrokers []string

	closers []func()
}

// New wires every service. cfg.SetMongo must have been called.
func New(cfg *config.Config) *Services {
	s := &Services{}
	s.Metrics = newRecorder(cfg)
	s.closers = append(s.closers, s.Metrics.Close)

	if cfg.EventsEnabled {
		kafkaCfg := loadKafka(cfg)
		s.KafkaBrokers = kafkaCfg.Brokers
		s.Publisher = newPublisher(cfg, kafkaCfg, s.Metrics)
		s.closers = append(s.closers, func() {
			if err := s.Publisher.Close(); err != nil {
				cfg.Log.Error("Failed to close kafka producer", "error", err)
			}
		})
	}

	sessions := sessionrepo.NewMongoSessionRepository(cfg)
	meetings := meetingrepo.NewMongoMeetingRepository(cfg, sessions)
	accounts := accountrepo.NewMongoAccountRepository(cfg)
	locations := locationrepo.NewMongoLocationRepository(cfg)

	s.Gateway = conferencing.NewGateway(conferencing.NewClient(cfg, s.Metrics), sessions, cfg.Log)
	s.Accounts = accountservice.NewAccountService(accounts, accountvalidator.NewAccountValidator(cfg.Log), cfg)
	s.Locations = locationservice.NewLocationService(locations, meetings, locationvalidator.NewLocationValidator(cfg.Log), cfg)
	s.Meetings = meetingservice.NewMeetingService(meetingservice.Dependencies{
		Meetings:    meetings,
		Attendances: meetingrepo.NewMongoAttendanceRepository(cfg),
		Sessions:    sessions,
		Accounts:    accounts,
		Locations:   locations,
		Users:       userrepo.NewMongoUserRepository(cfg),
		Gateway:     s.Gateway,
		Locker:      newLocker(cfg),
		Publisher:   s.Publisher,
		Metrics:     s.Metrics,
		Validator:   meetingvalidator.NewMeetingValidator(cfg.Log),
	}, cfg)

	cfg.Log.Info("Services initialized",
		"database", cfg.MongoDatabaseName,
		"lock_backend", cfg.LockBackend,
		"events_enabled", cfg.EventsEnabled,
		"metrics_enabled", cfg.MetricsEnabled,
	)
	return s
}

// Close releases the producer and flushes metrics, in reverse order of
// construction.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newRecorder(cfg *config.Config) metrics.Recorder {
	if !cfg.MetricsEnabled {
		return metrics.Noop{}
	}
	rec, err := metrics.NewCloudWatch(cfg.AWSRegion, cfg.MetricsNamespace, cfg.Log)
	if err != nil {
		cfg.Log.Error("Failed to initialize CloudWatch metrics, continuing without", "error", err)
		return metrics.Noop{}
	}
	return rec
}

func newLocker(cfg *config.Config) scheduler.Locker {
	if cfg.LockBackend == config.LockBackendMongo {
		db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
		return scheduler.NewMongoLocker(db, cfg.LockWaitTimeout, cfg.LockHoldTimeout, cfg.LockPollInterval)
	}
	return scheduler.NewLocalLocker(cfg.LockWaitTimeout, cfg.LockHoldTimeout)
}

func loadKafka(cfg *config.Config) *kafka_config.Config {
	kafkaCfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid kafka configuration", "error", err)
	}
	kafkaCfg.LogConfiguration(cfg.Log)
	return kafkaCfg
}

func newPublisher(cfg *config.Config, kafkaCfg *kafka_config.Config, rec metrics.Recorder) kafka.Publisher {
	producer, err := kafka.NewProducer(kafkaCfg, cfg.MeetingEventsTopic, kafkaCfg.DLQTopic(cfg.MeetingEventsTopic), cfg.Log)
	if err != nil {
		cfg.Log.Fatal("Failed to create kafka producer", "error", err, "topic", cfg.MeetingEventsTopic)
	}
	if kafkaCfg.Middleware {
		producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))
		producer.Use(kafka_middleware.MetricsProducerMiddleware(rec))
	}
	return producer
}

// NewConsumer builds the session status consumer around handler.
func NewConsumer(cfg *config.Config, rec metrics.Recorder, handler kafka.MessageHandler) *kafka.Consumer {
	kafkaCfg := loadKafka(cfg)
	consumer, err := kafka.NewConsumer(
		kafkaCfg,
		cfg.SessionStatusTopic,
		cfg.SessionStatusGroup,
		kafkaCfg.DLQTopic(cfg.SessionStatusTopic),
		handler,
		cfg.Log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create kafka consumer", "error", err, "topic", cfg.SessionStatusTopic)
	}
	if kafkaCfg.Middleware {
		consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))
		consumer.Use(kafka_middleware.MetricsConsumerMiddleware(rec))
	}
	return consumer
}
