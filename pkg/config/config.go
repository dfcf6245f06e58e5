package config

import (
	"fmt"
	"meetly/pkg/client"
	mongotx "meetly/pkg/db/mongo"
	"meetly/pkg/logger"
	"meetly/pkg/sealer"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServiceName string

	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	JWTSecret        string
	SecretSealingKey string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	LockBackend      string
	LockWaitTimeout  time.Duration
	LockHoldTimeout  time.Duration
	LockPollInterval time.Duration

	MaxConcurrentSessions int

	ConferencingAuthURL        string
	ConferencingAPIURL         string
	ConferencingTimeout        time.Duration
	ConferencingTokenTTL       time.Duration
	ConferencingTokenCacheSize int
	ConferencingTimezone       string

	PublicBaseURL string

	EventsEnabled      bool
	MeetingEventsTopic string
	SessionStatusTopic string
	SessionStatusGroup string

	MetricsEnabled   bool
	MetricsNamespace string
	AWSRegion        string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// .env is optional; real environment variables always win.
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: serviceName,

		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		JWTSecret:        getEnvStr(EnvJWTSecret, ""),
		SecretSealingKey: getEnvStr(EnvSecretSealingKey, ""),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		LockBackend:      strings.ToLower(getEnvStr(EnvLockBackend, DefaultLockBackend)),
		LockWaitTimeout:  getEnvDuration(EnvLockWaitTimeout, DefaultLockWaitTimeout),
		LockHoldTimeout:  getEnvDuration(EnvLockHoldTimeout, DefaultLockHoldTimeout),
		LockPollInterval: getEnvDuration(EnvLockPollInterval, DefaultLockPollInterval),

		MaxConcurrentSessions: getEnvNum(EnvMaxConcurrentSessions, DefaultMaxConcurrentSessions),

		ConferencingAuthURL:        getEnvStr(EnvConferencingAuthURL, DefaultConferencingAuthURL),
		ConferencingAPIURL:         getEnvStr(EnvConferencingAPIURL, DefaultConferencingAPIURL),
		ConferencingTimeout:        getEnvDuration(EnvConferencingTimeout, DefaultConferencingTimeout),
		ConferencingTokenTTL:       getEnvDuration(EnvConferencingTokenTTL, DefaultConferencingTokenTTL),
		ConferencingTokenCacheSize: getEnvNum(EnvConferencingTokenCacheSize, DefaultConferencingTokenCacheSize),
		ConferencingTimezone:       getEnvStr(EnvConferencingTimezone, DefaultConferencingTimezone),

		PublicBaseURL: getEnvStr(EnvPublicBaseURL, DefaultPublicBaseURL),

		EventsEnabled:      getEnvBool(EnvEventsEnabled, DefaultEventsEnabled),
		MeetingEventsTopic: getEnvStr(EnvMeetingEventsTopic, DefaultMeetingEventsTopic),
		SessionStatusTopic: getEnvStr(EnvSessionStatusTopic, DefaultSessionStatusTopic),
		SessionStatusGroup: getEnvStr(EnvSessionStatusGroup, DefaultSessionStatusGroup),

		MetricsEnabled:   getEnvBool(EnvMetricsEnabled, DefaultMetricsEnabled),
		MetricsNamespace: getEnvStr(EnvMetricsNamespace, DefaultMetricsNamespace),
		AWSRegion:        getEnvStr(EnvAWSRegion, DefaultAWSRegion),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, client.MongoOptions{
		URI:         cfg.MongoURI,
		AppName:     cfg.ServiceName,
		ConnTimeout: cfg.MongoConnTimeout,
	})
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", redactMongoURI(cfg.MongoURI)))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if _, err := sealer.New(cfg.SecretSealingKey); err != nil {
		errors = append(errors, fmt.Sprintf("SecretSealingKey must be a base64 AES key of 16, 24 or 32 bytes: %v", err))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}

	if cfg.LockBackend != LockBackendLocal && cfg.LockBackend != LockBackendMongo {
		errors = append(errors, fmt.Sprintf("LockBackend must be one of [%s, %s], got: %s", LockBackendLocal, LockBackendMongo, cfg.LockBackend))
	}
	if cfg.LockWaitTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("LockWaitTimeout must be positive, got: %s", cfg.LockWaitTimeout))
	}
	if cfg.LockHoldTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("LockHoldTimeout must be positive, got: %s", cfg.LockHoldTimeout))
	}
	if cfg.LockPollInterval <= 0 {
		errors = append(errors, fmt.Sprintf("LockPollInterval must be positive, got: %s", cfg.LockPollInterval))
	}

	if cfg.MaxConcurrentSessions <= 0 {
		errors = append(errors, fmt.Sprintf("MaxConcurrentSessions must be positive, got: %d", cfg.MaxConcurrentSessions))
	}

	if _, err := url.ParseRequestURI(cfg.ConferencingAuthURL); err != nil {
		errors = append(errors, fmt.Sprintf("ConferencingAuthURL must be a valid URL, got: %s", cfg.ConferencingAuthURL))
	}
	if _, err := url.ParseRequestURI(cfg.ConferencingAPIURL); err != nil {
		errors = append(errors, fmt.Sprintf("ConferencingAPIURL must be a valid URL, got: %s", cfg.ConferencingAPIURL))
	}
	if cfg.ConferencingTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ConferencingTimeout must be positive, got: %s", cfg.ConferencingTimeout))
	}
	if minHold := lockHoldFloor(cfg.ConferencingTimeout); cfg.ConferencingTimeout > 0 && cfg.LockHoldTimeout <= minHold {
		errors = append(errors, fmt.Sprintf("LockHoldTimeout must exceed %s (two conferencing calls per transaction attempt), got: %s", minHold, cfg.LockHoldTimeout))
	}
	if cfg.ConferencingTokenTTL <= 0 {
		errors = append(errors, fmt.Sprintf("ConferencingTokenTTL must be positive, got: %s", cfg.ConferencingTokenTTL))
	}
	if cfg.ConferencingTokenCacheSize <= 0 {
		errors = append(errors, fmt.Sprintf("ConferencingTokenCacheSize must be positive, got: %d", cfg.ConferencingTokenCacheSize))
	}
	if _, err := time.LoadLocation(cfg.ConferencingTimezone); err != nil {
		errors = append(errors, fmt.Sprintf("ConferencingTimezone must be an IANA zone, got: %s", cfg.ConferencingTimezone))
	}

	if cfg.EventsEnabled && cfg.MeetingEventsTopic == "" {
		errors = append(errors, "MeetingEventsTopic cannot be empty when events are enabled")
	}
	if cfg.MetricsEnabled && cfg.MetricsNamespace == "" {
		errors = append(errors, "MetricsNamespace cannot be empty when metrics are enabled")
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"jwt_secret_set", cfg.JWTSecret != "",
		"secret_sealing_enabled", cfg.SecretSealingKey != "",
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"lock_backend", cfg.LockBackend,
		"lock_wait_timeout", cfg.LockWaitTimeout,
		"lock_hold_timeout", cfg.LockHoldTimeout,
		"max_concurrent_sessions", cfg.MaxConcurrentSessions,
		"conferencing_auth_url", cfg.ConferencingAuthURL,
		"conferencing_api_url", cfg.ConferencingAPIURL,
		"conferencing_timeout", cfg.ConferencingTimeout,
		"conferencing_token_ttl", cfg.ConferencingTokenTTL,
		"conferencing_timezone", cfg.ConferencingTimezone,
		"events_enabled", cfg.EventsEnabled,
		"meeting_events_topic", cfg.MeetingEventsTopic,
		"metrics_enabled", cfg.MetricsEnabled,
		"metrics_namespace", cfg.MetricsNamespace,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultPaginationLimit
	} else if limit > MaxPaginationLimit {
		limit = MaxPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}

// lockHoldFloor is the longest a creation lease can be held: a token fetch
// and a session create per transaction attempt.
func lockHoldFloor(conferencingTimeout time.Duration) time.Duration {
	return 2 * conferencingTimeout * mongotx.DefaultMaxAttempts
}
