package kafka_config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"meetly/pkg/logger"
)

// Config is the broker connection shared by the lifecycle event producer and
// the session status consumer. Topics belong to the service config.
type Config struct {
	Brokers    []string
	ClientID   string
	DLQSuffix  string
	Middleware bool

	Producer ProducerConfig
	Consumer ConsumerConfig
}

type ProducerConfig struct {
	MaxAttempts  int
	BatchTimeout time.Duration
	RequireAcks  int // -1 all, 0 none, 1 leader
	Compression  string
	Async        bool
}

type ConsumerConfig struct {
	StartOffset       int64 // -1 newest, -2 oldest
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	CommitInterval    time.Duration
	HeartbeatInterval time.Duration
	SessionTimeout    time.Duration
	RebalanceTimeout  time.Duration
	MaxRetries        int
}

// Load reads the broker settings from the environment. Malformed values are
// reported instead of silently replaced by defaults.
func Load() (*Config, error) {
	env := &envReader{}

	cfg := &Config{
		Brokers:    splitBrokers(env.str(EnvKafkaBrokers, DefaultBrokers)),
		ClientID:   env.str(EnvKafkaClientID, DefaultClientID),
		DLQSuffix:  env.str(EnvKafkaDLQSuffix, DefaultDLQSuffix),
		Middleware: env.boolean(EnvKafkaMiddleware, DefaultMiddleware),
		Producer: ProducerConfig{
			MaxAttempts:  env.integer(EnvProducerMaxAttempts, DefaultProducerMaxAttempts),
			BatchTimeout: env.duration(EnvProducerBatchTimeout, DefaultProducerBatchTimeout),
			RequireAcks:  env.integer(EnvProducerRequireAcks, DefaultProducerRequireAcks),
			Compression:  strings.ToLower(env.str(EnvProducerCompression, DefaultProducerCompression)),
			Async:        env.boolean(EnvProducerAsync, DefaultProducerAsync),
		},
		Consumer: ConsumerConfig{
			StartOffset:       int64(env.integer(EnvConsumerStartOffset, DefaultConsumerStartOffset)),
			MinBytes:          env.integer(EnvConsumerMinBytes, DefaultConsumerMinBytes),
			MaxBytes:          env.integer(EnvConsumerMaxBytes, DefaultConsumerMaxBytes),
			MaxWait:           env.duration(EnvConsumerMaxWait, DefaultConsumerMaxWait),
			CommitInterval:    env.duration(EnvConsumerCommitInterval, DefaultConsumerCommitInterval),
			HeartbeatInterval: env.duration(EnvConsumerHeartbeatInterval, DefaultConsumerHeartbeatInterval),
			SessionTimeout:    env.duration(EnvConsumerSessionTimeout, DefaultConsumerSessionTimeout),
			RebalanceTimeout:  env.duration(EnvConsumerRebalanceTimeout, DefaultConsumerRebalanceTimeout),
			MaxRetries:        env.integer(EnvConsumerMaxRetries, DefaultConsumerMaxRetries),
		},
	}

	if err := errors.Join(env.err, cfg.Validate()); err != nil {
		return nil, fmt.Errorf("kafka configuration: %w", err)
	}
	return cfg, nil
}

// DLQTopic names the dead letter topic paired with topic.
func (c *Config) DLQTopic(topic string) string {
	if topic == "" || c.DLQSuffix == "" {
		return ""
	}
	return topic + c.DLQSuffix
}

func (c *Config) Validate() error {
	var errs []error

	if len(c.Brokers) == 0 {
		errs = append(errs, errors.New("at least one broker is required"))
	}
	if c.ClientID == "" {
		errs = append(errs, errors.New("client id cannot be empty"))
	}

	p := c.Producer
	if p.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("producer max attempts must be positive, got %d", p.MaxAttempts))
	}
	if p.BatchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("producer batch timeout must be positive, got %s", p.BatchTimeout))
	}
	if p.RequireAcks < -1 || p.RequireAcks > 1 {
		errs = append(errs, fmt.Errorf("producer require acks must be -1, 0 or 1, got %d", p.RequireAcks))
	}
	if !slices.Contains(compressions, p.Compression) {
		errs = append(errs, fmt.Errorf("producer compression must be one of %v, got %q", compressions, p.Compression))
	}

	cs := c.Consumer
	if cs.StartOffset < -2 {
		errs = append(errs, fmt.Errorf("consumer start offset must be -1, -2 or non-negative, got %d", cs.StartOffset))
	}
	if cs.MinBytes <= 0 || cs.MaxBytes < cs.MinBytes {
		errs = append(errs, fmt.Errorf("consumer byte bounds invalid: min %d, max %d", cs.MinBytes, cs.MaxBytes))
	}
	for name, d := range map[string]time.Duration{
		"max wait":           cs.MaxWait,
		"commit interval":    cs.CommitInterval,
		"heartbeat interval": cs.HeartbeatInterval,
		"session timeout":    cs.SessionTimeout,
		"rebalance timeout":  cs.RebalanceTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("consumer %s must be positive, got %s", name, d))
		}
	}
	if cs.HeartbeatInterval >= cs.SessionTimeout && cs.SessionTimeout > 0 {
		errs = append(errs, errors.New("consumer heartbeat interval must be shorter than the session timeout"))
	}
	if cs.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("consumer max retries cannot be negative, got %d", cs.MaxRetries))
	}

	return errors.Join(errs...)
}

func (c *Config) LogConfiguration(log *logger.Logger) {
	log.Info("Kafka configuration loaded",
		"client_id", c.ClientID,
		"brokers", c.Brokers,
		"dlq_suffix", c.DLQSuffix,
		"middleware", c.Middleware,
		"producer_require_acks", c.Producer.RequireAcks,
		"producer_compression", c.Producer.Compression,
		"producer_async", c.Producer.Async,
		"consumer_start_offset", c.Consumer.StartOffset,
		"consumer_max_retries", c.Consumer.MaxRetries,
	)
}

func splitBrokers(raw string) []string {
	var brokers []string
	for _, broker := range strings.Split(raw, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}

// envReader accumulates parse failures so Load can report all of them.
type envReader struct {
	err error
}

func (e *envReader) fail(key, value string, err error) {
	e.err = errors.Join(e.err, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (e *envReader) str(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func (e *envReader) integer(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return n
}

func (e *envReader) boolean(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return b
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return fallback
	}
	return d
}
