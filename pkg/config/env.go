package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvJWTSecret        = "JWT_SECRET"
	EnvSecretSealingKey = "SECRET_SEALING_KEY"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvLockBackend      = "LOCK_BACKEND"
	EnvLockWaitTimeout  = "LOCK_WAIT_TIMEOUT"
	EnvLockHoldTimeout  = "LOCK_HOLD_TIMEOUT"
	EnvLockPollInterval = "LOCK_POLL_INTERVAL"

	EnvMaxConcurrentSessions = "MAX_CONCURRENT_SESSIONS"

	EnvConferencingAuthURL        = "CONFERENCING_AUTH_URL"
	EnvConferencingAPIURL         = "CONFERENCING_API_URL"
	EnvConferencingTimeout        = "CONFERENCING_TIMEOUT"
	EnvConferencingTokenTTL       = "CONFERENCING_TOKEN_TTL"
	EnvConferencingTokenCacheSize = "CONFERENCING_TOKEN_CACHE_SIZE"
	EnvConferencingTimezone       = "CONFERENCING_TIMEZONE"

	EnvPublicBaseURL = "PUBLIC_BASE_URL"

	EnvEventsEnabled      = "EVENTS_ENABLED"
	EnvMeetingEventsTopic = "MEETING_EVENTS_TOPIC"
	EnvSessionStatusTopic = "SESSION_STATUS_TOPIC"
	EnvSessionStatusGroup = "SESSION_STATUS_GROUP"

	EnvMetricsEnabled   = "METRICS_ENABLED"
	EnvMetricsNamespace = "METRICS_NAMESPACE"
	EnvAWSRegion        = "AWS_REGION"
)
