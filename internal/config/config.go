package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Replay bookmark modes.
const (
	BookmarksNone   = "none"
	BookmarksMemory = "memory"
	BookmarksRedis  = "redis"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	Store       StoreConfig      `mapstructure:"store"`
	Predictor   PredictorConfig  `mapstructure:"predictor"`
	Ingestion   IngestionConfig  `mapstructure:"ingestion"`
	Validation  ValidationConfig `mapstructure:"validation"`
	Replay      ReplayConfig     `mapstructure:"replay"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxUploadMB    int      `mapstructure:"max_upload_mb"`
}

type DatabaseConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	DatabaseURL string `mapstructure:"database_url"`
	MaxConns    int    `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StoreConfig struct {
	Driver         string `mapstructure:"driver"`
	ConnectRetries int    `mapstructure:"connect_retries"`
}

type PredictorConfig struct {
	ServiceURL       string `mapstructure:"service_url"`
	Timeout          string `mapstructure:"timeout"`
	TrainTimeout     string `mapstructure:"train_timeout"`
	FailureThreshold int    `mapstructure:"failure_threshold"`
	ResetTimeout     string `mapstructure:"reset_timeout"`
}

type IngestionConfig struct {
	BatchSize int    `mapstructure:"batch_size"`
	Epoch     string `mapstructure:"epoch"`
}

type ValidationConfig struct {
	EnforceWindowOrder bool `mapstructure:"enforce_window_order"`
}

type ReplayConfig struct {
	Bookmarks         string `mapstructure:"bookmarks"`
	BookmarkTTL       string `mapstructure:"bookmark_ttl"`
	BookmarkCacheSize int    `mapstructure:"bookmark_cache_size"`
	TickInterval      string `mapstructure:"tick_interval"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
}

// Load reads configuration from config.yaml, .env and the environment.
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set default values
	setDefaults(v)

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindEnv("predictor.service_url", "PREDICTOR_SERVICE_URL", "ML_SERVICE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind ML_SERVICE_URL environment variable: %w", err)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that viper cannot type-check.
func (c *Config) Validate() error {
	if c.Ingestion.BatchSize <= 0 {
		return fmt.Errorf("ingestion batch size must be positive, got %d", c.Ingestion.BatchSize)
	}
	if _, err := c.Ingestion.EpochTime(); err != nil {
		return fmt.Errorf("invalid ingestion epoch: %w", err)
	}

	switch c.Store.Driver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}

	switch c.Replay.Bookmarks {
	case BookmarksNone, BookmarksMemory, BookmarksRedis:
	default:
		return fmt.Errorf("unknown replay bookmark mode %q", c.Replay.Bookmarks)
	}
	if c.Replay.Bookmarks == BookmarksMemory && c.Replay.BookmarkCacheSize <= 0 {
		return fmt.Errorf("replay bookmark cache size must be positive, got %d", c.Replay.BookmarkCacheSize)
	}

	durations := map[string]string{
		"predictor.timeout":       c.Predictor.Timeout,
		"predictor.train_timeout": c.Predictor.TrainTimeout,
		"predictor.reset_timeout": c.Predictor.ResetTimeout,
		"replay.bookmark_ttl":     c.Replay.BookmarkTTL,
		"replay.tick_interval":    c.Replay.TickInterval,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s duration: %w", key, err)
		}
	}

	return nil
}

// EpochTime parses the ingestion epoch (RFC3339).
func (c IngestionConfig) EpochTime() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, c.Epoch)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// TimeoutDuration returns the per-request predictor timeout.
func (c PredictorConfig) TimeoutDuration() time.Duration {
	return parseDurationOr(c.Timeout, 10*time.Second)
}

// TrainTimeoutDuration returns the training request timeout.
func (c PredictorConfig) TrainTimeoutDuration() time.Duration {
	return parseDurationOr(c.TrainTimeout, 5*time.Minute)
}

// ResetTimeoutDuration returns how long the predictor circuit stays open.
func (c PredictorConfig) ResetTimeoutDuration() time.Duration {
	return parseDurationOr(c.ResetTimeout, 30*time.Second)
}

// BookmarkTTLDuration returns how long replay bookmarks are kept.
func (c ReplayConfig) BookmarkTTLDuration() time.Duration {
	return parseDurationOr(c.BookmarkTTL, 30*time.Minute)
}

// TickIntervalDuration returns the replay driver cadence.
func (c ReplayConfig) TickIntervalDuration() time.Duration {
	return parseDurationOr(c.TickInterval, time.Second)
}

// DSN returns the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func setDefaults(v *viper.Viper) {
	// Environment
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:4200", "http://frontend:80"})
	v.SetDefault("server.max_upload_mb", 256)

	// Set database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "intelliinspect")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.database_url", "")
	v.SetDefault("database.max_conns", 10)

	// Redis
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Store
	v.SetDefault("store.driver", StoreDriverPostgres)
	v.SetDefault("store.connect_retries", 3)

	// Predictor
	v.SetDefault("predictor.service_url", "http://localhost:8000")
	v.SetDefault("predictor.timeout", "10s")
	v.SetDefault("predictor.train_timeout", "5m")
	v.SetDefault("predictor.failure_threshold", 5)
	v.SetDefault("predictor.reset_timeout", "30s")

	// Ingestion
	v.SetDefault("ingestion.batch_size", 1000)
	v.SetDefault("ingestion.epoch", "2021-01-01T00:00:00Z")

	// Validation
	v.SetDefault("validation.enforce_window_order", false)

	// Replay
	v.SetDefault("replay.bookmarks", BookmarksMemory)
	v.SetDefault("replay.bookmark_ttl", "30m")
	v.SetDefault("replay.bookmark_cache_size", 10000)
	v.SetDefault("replay.tick_interval", "1s")

	// Telemetry
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "intelliinspect-go")
	v.SetDefault("telemetry.service_version", "1.0.0")
}
