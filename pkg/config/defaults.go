package config

import "time"

const (
	LockBackendLocal = "local"
	LockBackendMongo = "mongo"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "meetly"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 45 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultLockBackend      = LockBackendLocal
	DefaultLockWaitTimeout  = 5 * time.Second
	DefaultLockHoldTimeout  = 4 * time.Minute
	DefaultLockPollInterval = 100 * time.Millisecond

	DefaultMaxConcurrentSessions = 2

	DefaultConferencingAuthURL        = "https://zoom.us/oauth/token"
	DefaultConferencingAPIURL         = "https://api.zoom.us/v2"
	DefaultConferencingTimeout        = 30 * time.Second
	DefaultConferencingTokenTTL       = 55 * time.Minute
	DefaultConferencingTokenCacheSize = 64
	DefaultConferencingTimezone       = "UTC"

	DefaultPublicBaseURL = "http://localhost:8080"

	DefaultEventsEnabled      = false
	DefaultMeetingEventsTopic = "meetings.lifecycle"
	DefaultSessionStatusTopic = "conferencing.session-status"
	DefaultSessionStatusGroup = "meetly-session-sync"

	DefaultMetricsEnabled   = false
	DefaultMetricsNamespace = "Meetly/Scheduling"
	DefaultAWSRegion        = "us-east-1"

	DefaultPaginationLimit = 10
	MaxPaginationLimit     = 100
)
