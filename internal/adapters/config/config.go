package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Reddit     RedditConfig     `envconfig:"REDDIT"`
	Pipeline   PipelineConfig   `envconfig:"PIPELINE"`
	Classifier ClassifierConfig `envconfig:"CLASSIFIER"`
	Database   DatabaseConfig   `envconfig:"DATABASE"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	API        APIConfig        `envconfig:"API"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
}

// RedditConfig represents post source configuration
type RedditConfig struct {
	Enabled    bool     `envconfig:"REDDIT_ENABLED" default:"true"`
	Subreddits []string `envconfig:"REDDIT_SUBREDDITS" default:"CryptoCurrency,Bitcoin,ethtrader,CryptoMarkets"`
	FetchLimit int      `envconfig:"REDDIT_FETCH_LIMIT" default:"50"`
	UserAgent  string   `envconfig:"REDDIT_USER_AGENT" default:"crypto-pulse/1.0"`
}

// PipelineConfig represents enrichment and aggregation scheduling parameters
type PipelineConfig struct {
	FetchInterval    time.Duration `envconfig:"PIPELINE_FETCH_INTERVAL" default:"10m"`
	LabelInterval    time.Duration `envconfig:"PIPELINE_LABEL_INTERVAL" default:"15m"`
	SnapshotInterval time.Duration `envconfig:"PIPELINE_SNAPSHOT_INTERVAL" default:"10m"`
	LabelBatchSize   int           `envconfig:"PIPELINE_LABEL_BATCH_SIZE" default:"20"`
	LabelBatchPause  time.Duration `envconfig:"PIPELINE_LABEL_BATCH_PAUSE" default:"5s"`
}

// ClassifierConfig represents the ML coin classifier configuration
type ClassifierConfig struct {
	Enabled bool   `envconfig:"CLASSIFIER_ENABLED" default:"true"`
	APIKey  string `envconfig:"CLASSIFIER_API_KEY" required:"false"`
	Model   string `envconfig:"CLASSIFIER_MODEL" default:"gpt-4o-mini"`
	BaseURL string `envconfig:"CLASSIFIER_BASE_URL" default:"https://api.openai.com/v1"`
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"crypto_pulse"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// ClickHouseConfig represents the optional analytics sink
type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database string `envconfig:"CLICKHOUSE_DATABASE" default:"crypto_pulse"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD" required:"false"`
}

// RedisConfig represents Redis connection for the labeler run lock
type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" required:"false"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// APIConfig represents the query API server
type APIConfig struct {
	Port string `envconfig:"API_PORT" default:"8080"`
}

// TelegramConfig represents the optional aggregation digest notifier
type TelegramConfig struct {
	BotToken string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	ChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" required:"false"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" required:"false"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid. The process refuses to start
// with partial configuration.
func (c *Config) Validate() error {
	if c.Reddit.Enabled && len(c.Reddit.Subreddits) == 0 {
		return fmt.Errorf("at least one subreddit must be configured")
	}
	if c.Reddit.FetchLimit <= 0 {
		return fmt.Errorf("fetch_limit must be positive")
	}

	if c.Classifier.Enabled && c.Classifier.APIKey == "" {
		return fmt.Errorf("classifier enabled but no API key configured")
	}

	if c.Pipeline.LabelBatchSize < 1 {
		return fmt.Errorf("label_batch_size must be at least 1")
	}
	if c.Pipeline.FetchInterval <= 0 || c.Pipeline.SnapshotInterval <= 0 {
		return fmt.Errorf("pipeline intervals must be positive")
	}

	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram chat_id is required when bot token is set")
	}

	return nil
}

// GetDSN returns PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// GetDSN returns ClickHouse connection string
func (c *ClickHouseConfig) GetDSN() string {
	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%d/%s",
		c.User, c.Password, c.Host, c.Port, c.Database,
	)
}
