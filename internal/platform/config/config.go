package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"casedocs/pkg/platform/strings"
)

// Config is the full process configuration, read once at startup.
type Config struct {
	Server   Server
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Kafka    KafkaConfig
	Worker   WorkerConfig
	Lock     LockConfig
	Auth     AuthConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	PublicURL       string
	Environment     string
	ShutdownTimeout time.Duration
}

// DatabaseConfig points at the case database.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	AutoMigrate     bool
	// SeedFile preloads the in-memory stores when URL is empty.
	SeedFile string
}

// RedisConfig backs the failed-attempt tracker. An empty URL selects the in-memory tracker.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Storage backends.
const (
	StorageGCS   = "gcs"
	StorageLocal = "local"
)

// StorageConfig selects where templates are read from and results written to.
type StorageConfig struct {
	Backend         string
	TemplatesBucket string
	ResultsBucket   string
	LocalRoot       string
	UploadAttempts  int
	UploadTimeout   time.Duration
}

// KafkaConfig enables job lifecycle events. No brokers means events are dropped.
type KafkaConfig struct {
	Brokers           []string
	Topic             string
	Partitions        int32
	ReplicationFactor int16
}

// Enabled reports whether brokers are configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// WorkerConfig tunes the queue worker.
type WorkerConfig struct {
	Interval     time.Duration
	MaxRetries   int
	URLTTL       time.Duration
	ReclaimAfter time.Duration
}

// LockConfig holds the document lock defaults.
type LockConfig struct {
	AcquireTimeout   time.Duration
	CleanupThreshold time.Duration
}

// AuthConfig configures bearer token validation and the failed-attempt limit.
type AuthConfig struct {
	JWTSigningKey     string
	Issuer            string
	Audience          string
	MaxFailedAttempts int
	AttemptWindow     time.Duration
}

const devSigningKey = "dev-secret-key-change-in-production"

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	e := &envReader{}
	cfg := Config{
		Server: Server{
			Addr:            e.str("CASEDOCS_ADDR", ":8080"),
			PublicURL:       e.str("CASEDOCS_PUBLIC_URL", "http://localhost:8080"),
			Environment:     e.str("CASEDOCS_ENV", "development"),
			ShutdownTimeout: e.duration("CASEDOCS_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:             e.str("DATABASE_URL", ""),
			MaxOpenConns:    e.integer("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    e.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: e.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			AutoMigrate:     e.boolean("DATABASE_AUTO_MIGRATE", false),
			SeedFile:        e.str("DEV_SEED_FILE", ""),
		},
		Redis: RedisConfig{
			URL:          e.str("REDIS_URL", ""),
			PoolSize:     e.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: e.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  e.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  e.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: e.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Storage: StorageConfig{
			Backend:         e.str("STORAGE_BACKEND", StorageLocal),
			TemplatesBucket: e.str("TEMPLATES_BUCKET", "templates"),
			ResultsBucket:   e.str("RESULTS_BUCKET", "results"),
			LocalRoot:       e.str("STORAGE_LOCAL_ROOT", "./data"),
			UploadAttempts:  e.integer("STORAGE_UPLOAD_ATTEMPTS", 4),
			UploadTimeout:   e.duration("STORAGE_UPLOAD_TIMEOUT", 50*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           strings.SplitList(os.Getenv("KAFKA_BROKERS")),
			Topic:             e.str("KAFKA_JOBS_TOPIC", "casedocs.jobs"),
			Partitions:        int32(e.integer("KAFKA_JOBS_PARTITIONS", 3)),
			ReplicationFactor: int16(e.integer("KAFKA_JOBS_REPLICATION", 1)),
		},
		Worker: WorkerConfig{
			Interval:     e.duration("WORKER_INTERVAL", time.Minute),
			MaxRetries:   e.integer("WORKER_MAX_RETRIES", 3),
			URLTTL:       e.duration("WORKER_URL_TTL", time.Hour),
			ReclaimAfter: e.duration("WORKER_RECLAIM_AFTER", 30*time.Minute),
		},
		Lock: LockConfig{
			AcquireTimeout:   e.duration("LOCK_ACQUIRE_TIMEOUT", 5*time.Minute),
			CleanupThreshold: e.duration("LOCK_CLEANUP_THRESHOLD", 10*time.Minute),
		},
		Auth: AuthConfig{
			// Use a default for development - should be overridden in production
			JWTSigningKey:     e.str("JWT_SIGNING_KEY", devSigningKey),
			Issuer:            e.str("JWT_ISSUER", "casedocs"),
			Audience:          e.str("JWT_AUDIENCE", "casedocs-api"),
			MaxFailedAttempts: e.integer("AUTH_MAX_FAILED_ATTEMPTS", 10),
			AttemptWindow:     e.duration("AUTH_ATTEMPT_WINDOW", 15*time.Minute),
		},
	}
	if e.err != nil {
		return Config{}, e.err
	}
	return cfg, cfg.Validate()
}

// Validate rejects combinations the process cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Backend {
	case StorageGCS, StorageLocal:
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageGCS, StorageLocal, c.Storage.Backend)
	}
	if c.Environment() == "production" && c.Auth.JWTSigningKey == devSigningKey {
		return fmt.Errorf("JWT_SIGNING_KEY must be set in production")
	}
	if c.Worker.Interval <= 0 {
		return fmt.Errorf("WORKER_INTERVAL must be positive")
	}
	if c.Worker.MaxRetries < 0 {
		return fmt.Errorf("WORKER_MAX_RETRIES must not be negative")
	}
	if c.Lock.AcquireTimeout <= 0 || c.Lock.CleanupThreshold <= 0 {
		return fmt.Errorf("lock timeouts must be positive")
	}
	return nil
}

func (c Config) Environment() string {
	return c.Server.Environment
}

// envReader keeps the first parse error so FromEnv reads as a flat list.
type envReader struct {
	err error
}

func (e *envReader) str(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func (e *envReader) integer(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(fmt.Errorf("%s: invalid integer %q", key, v))
		return fallback
	}
	return n
}

func (e *envReader) boolean(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(fmt.Errorf("%s: invalid boolean %q", key, v))
		return fallback
	}
	return b
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(fmt.Errorf("%s: invalid duration %q", key, v))
		return fallback
	}
	return d
}

func (e *envReader) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}
