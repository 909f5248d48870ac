// Package config provides configuration management for the repo ingestion service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	GitHub    GitHubConfig
	Scheduler SchedulerConfig
	Router    RouterConfig
	Progress  ProgressConfig
	Pager     PagerConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// GitHubConfig holds upstream API configuration
type GitHubConfig struct {
	Token          string
	BaseURL        string
	RequestTimeout time.Duration
}

// SchedulerConfig holds worker scheduling configuration
type SchedulerConfig struct {
	TickInterval      time.Duration // How often the scheduler looks for runnable jobs
	MaxConcurrentJobs int           // Worker pool size; distinct jobs only
	JobBatchSize      int           // Max runnable jobs fetched per tick
	LeaseTTL          time.Duration // Per-job lease duration; bounds a stuck worker
}

// RouterConfig holds work classification configuration
type RouterConfig struct {
	FanOutThreshold int // Above this many affected targets, force the slow lane
}

// ProgressConfig holds state machine tuning
type ProgressConfig struct {
	MaxConsecutiveErrors int // Pause after this many failures without a success
	MinChunkSize         int
	MaxChunkSize         int
	DefaultChunkSize     int
}

// PagerConfig holds rate-limit pacing configuration
type PagerConfig struct {
	LowWaterFraction  float64       // Fraction of quota below which pacing kicks in
	RequestsPerSecond float64       // Self-imposed request ceiling
	MaxSuggestedDelay time.Duration // Cap on the delay hint returned to callers
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "repo_ingest"),
				User:           getEnv("POSTGRES_USER", "ingest"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "repo_ingest"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		GitHub: GitHubConfig{
			Token:          getEnv("GITHUB_TOKEN", ""),
			BaseURL:        getEnv("GITHUB_BASE_URL", "https://api.github.com"),
			RequestTimeout: getEnvAsDuration("GITHUB_REQUEST_TIMEOUT", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			TickInterval:      getEnvAsDuration("SCHEDULER_TICK_INTERVAL", 5*time.Second),
			MaxConcurrentJobs: getEnvAsInt("SCHEDULER_MAX_CONCURRENT_JOBS", 5),
			JobBatchSize:      getEnvAsInt("SCHEDULER_JOB_BATCH_SIZE", 20),
			LeaseTTL:          getEnvAsDuration("SCHEDULER_LEASE_TTL", 2*time.Minute),
		},
		Router: RouterConfig{
			FanOutThreshold: getEnvAsInt("ROUTER_FANOUT_THRESHOLD", 10),
		},
		Progress: ProgressConfig{
			MaxConsecutiveErrors: getEnvAsInt("PROGRESS_MAX_CONSECUTIVE_ERRORS", 5),
			MinChunkSize:         getEnvAsInt("PROGRESS_MIN_CHUNK_SIZE", 10),
			MaxChunkSize:         getEnvAsInt("PROGRESS_MAX_CHUNK_SIZE", 100),
			DefaultChunkSize:     getEnvAsInt("PROGRESS_DEFAULT_CHUNK_SIZE", 100),
		},
		Pager: PagerConfig{
			LowWaterFraction:  getEnvAsFloat("PAGER_LOW_WATER_FRACTION", 0.10),
			RequestsPerSecond: getEnvAsFloat("PAGER_REQUESTS_PER_SECOND", 2.0),
			MaxSuggestedDelay: getEnvAsDuration("PAGER_MAX_SUGGESTED_DELAY", time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
