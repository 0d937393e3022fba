package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the TokenTRA service.
type Config struct {
	HTTPPort  string
	Version   string
	JWTSecret []byte
	Database  DatabaseConfig
	Cache     CacheConfig
	Redis     RedisConfig
	RateLimit RateLimitConfig
	Processor ProcessorConfig
	Archive   ArchiveConfig
	Email     EmailConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// CacheConfig holds in-process cache settings
type CacheConfig struct {
	APIKeyCacheSize      int
	APIKeyCacheTTL       time.Duration
	AttributionCacheSize int
	AttributionCacheTTL  time.Duration
}

// RedisConfig holds Redis connection settings. Redis is optional: the
// rate limiter and event queue fall back to in-process implementations
// when it is disabled.
type RedisConfig struct {
	Enabled      bool
	Address      string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RateLimitConfig holds default per-key rate limits, applied when the
// key row does not carry its own.
type RateLimitConfig struct {
	DefaultPerMinute int
	DefaultPerDay    int
}

// ProcessorConfig holds settings for the async event processor queue.
type ProcessorConfig struct {
	BatchSize    int
	BatchTimeout time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	UseRedis     bool
}

// ArchiveConfig holds configuration for the S3 usage-record archive sink
type ArchiveConfig struct {
	Enabled       bool
	BufferSize    int
	FlushSize     int
	FlushInterval time.Duration
	S3Bucket      string
	S3Region      string
	S3Prefix      string
	PodName       string
}

// EmailConfig holds settings for the transactional email channel.
type EmailConfig struct {
	Enabled  bool
	Endpoint string
	APIKey   string
	From     string
}

func getEnvString(key, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}

func getEnvInt(key string, defaultValue int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(val)
	if err != nil {
		return defaultValue
	}
	return intVal
}

func getEnvBool(key string, defaultValue bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1"
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(val)
	if err != nil {
		return defaultValue
	}
	return duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:  getEnvString("HTTP_PORT", "8080"),
		Version:   getEnvString("SERVICE_VERSION", "2.0"),
		JWTSecret: []byte(getEnvString("JWT_SECRET", "supersecretkey")),
		Database: DatabaseConfig{
			URL:             dbURL,
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 1*time.Minute),
		},
		Cache: CacheConfig{
			APIKeyCacheSize:      getEnvInt("CACHE_API_KEY_SIZE", 1000),
			APIKeyCacheTTL:       getEnvDuration("CACHE_API_KEY_TTL", 60*time.Second),
			AttributionCacheSize: getEnvInt("CACHE_ATTRIBUTION_SIZE", 2000),
			AttributionCacheTTL:  getEnvDuration("CACHE_ATTRIBUTION_TTL", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getEnvBool("REDIS_ENABLED", false),
			Address:      getEnvString("REDIS_ADDRESS", "localhost:6379"),
			Password:     getEnvString("REDIS_PASSWORD", ""),
			DB:           getEnvInt("REDIS_DB", 0),
			PoolSize:     getEnvInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		RateLimit: RateLimitConfig{
			DefaultPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 1000),
			DefaultPerDay:    getEnvInt("RATE_LIMIT_PER_DAY", 100000),
		},
		Processor: ProcessorConfig{
			BatchSize:    getEnvInt("PROCESSOR_BATCH_SIZE", 100),
			BatchTimeout: getEnvDuration("PROCESSOR_BATCH_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("PROCESSOR_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("PROCESSOR_RETRY_BACKOFF", 1*time.Second),
			UseRedis:     getEnvBool("PROCESSOR_USE_REDIS", false),
		},
		Archive: ArchiveConfig{
			Enabled:       getEnvBool("ARCHIVE_ENABLED", false),
			BufferSize:    getEnvInt("ARCHIVE_BUFFER_SIZE", 10000),
			FlushSize:     getEnvInt("ARCHIVE_FLUSH_SIZE", 1000),
			FlushInterval: getEnvDuration("ARCHIVE_FLUSH_INTERVAL", 5*time.Minute),
			S3Bucket:      getEnvString("ARCHIVE_S3_BUCKET", ""),
			S3Region:      getEnvString("ARCHIVE_S3_REGION", "us-east-1"),
			S3Prefix:      getEnvString("ARCHIVE_S3_PREFIX", "telemetry/"),
			PodName:       getEnvString("POD_NAME", "tokentra-0"),
		},
		Email: EmailConfig{
			Enabled:  getEnvBool("EMAIL_ENABLED", false),
			Endpoint: getEnvString("EMAIL_ENDPOINT", "https://api.resend.com/emails"),
			APIKey:   getEnvString("EMAIL_API_KEY", ""),
			From:     getEnvString("EMAIL_FROM", "TokenTRA <alerts@tokentra.com>"),
		},
	}

	return cfg, nil
}
