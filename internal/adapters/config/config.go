package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config represents application configuration
type Config struct {
	Engine    EngineConfig    `envconfig:"ENGINE"`
	Readiness ReadinessConfig `envconfig:"READINESS"`
	Alerts    AlertsConfig    `envconfig:"ALERTS"`

	Database   DatabaseConfig   `envconfig:"DATABASE"`
	ClickHouse ClickHouseConfig `envconfig:"CLICKHOUSE"`
	Redis      RedisConfig      `envconfig:"REDIS"`
	Telegram   TelegramConfig   `envconfig:"TELEGRAM"`
	Workers    WorkersConfig    `envconfig:"WORKERS"`
	Health     HealthConfig     `envconfig:"HEALTH"`
	Logging    LoggingConfig    `envconfig:"LOGGING"`
}

// EngineConfig represents workload window parameters
type EngineConfig struct {
	AcuteDays   int `envconfig:"ENGINE_ACUTE_DAYS" default:"7"`
	ChronicDays int `envconfig:"ENGINE_CHRONIC_DAYS" default:"28"`
}

// ReadinessConfig represents readiness scoring parameters
type ReadinessConfig struct {
	BaselineDays int `envconfig:"READINESS_BASELINE_DAYS" default:"90"`
}

// AlertsConfig represents alert policy tuning
type AlertsConfig struct {
	FatigueThreshold float64 `envconfig:"ALERTS_FATIGUE_THRESHOLD" default:"40.0"`
	FatigueDays      int     `envconfig:"ALERTS_FATIGUE_DAYS" default:"3"`
	OutlierZScore    float64 `envconfig:"ALERTS_OUTLIER_ZSCORE" default:"2.0"`
}

// DatabaseConfig represents database connection parameters
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	Name     string `envconfig:"DB_NAME" default:"athletics"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// ClickHouseConfig represents analytics archive connection parameters
type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"false"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	Database string `envconfig:"CLICKHOUSE_DATABASE" default:"athletics"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD" required:"false"`
}

// RedisConfig represents Redis connection parameters for distributed locking
type RedisConfig struct {
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" required:"false"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// TelegramConfig represents Telegram notification configuration
type TelegramConfig struct {
	BotToken       string `envconfig:"TELEGRAM_BOT_TOKEN" required:"false"`
	ChatID         int64  `envconfig:"TELEGRAM_CHAT_ID" required:"false"`
	AlertOnOpen    bool   `envconfig:"TELEGRAM_ALERT_ON_OPEN" default:"true"`
	AlertOnResolve bool   `envconfig:"TELEGRAM_ALERT_ON_RESOLVE" default:"true"`
}

// WorkersConfig represents background worker scheduling
type WorkersConfig struct {
	EvaluationHour int `envconfig:"WORKERS_EVALUATION_HOUR" default:"3"`
	Concurrency    int `envconfig:"WORKERS_CONCURRENCY" default:"4"`
}

// HealthConfig represents health check server configuration
type HealthConfig struct {
	Port string `envconfig:"HEALTH_PORT" default:"8080"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
	File  string `envconfig:"LOG_FILE" default:"logs/analytics.log"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	// Process environment variables
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	// Validate rolling window parameters
	if c.Engine.AcuteDays < 1 {
		return fmt.Errorf("acute_days must be at least 1")
	}
	if c.Engine.ChronicDays <= c.Engine.AcuteDays {
		return fmt.Errorf("chronic_days must be greater than acute_days")
	}

	if c.Readiness.BaselineDays < c.Engine.ChronicDays {
		return fmt.Errorf("baseline_days must cover at least the chronic window")
	}

	// Validate alert tuning
	if c.Alerts.FatigueThreshold <= 0 || c.Alerts.FatigueThreshold > 100 {
		return fmt.Errorf("fatigue_threshold must be between 0 and 100")
	}
	if c.Alerts.FatigueDays < 1 {
		return fmt.Errorf("fatigue_days must be at least 1")
	}
	if c.Alerts.OutlierZScore <= 0 {
		return fmt.Errorf("outlier_zscore must be positive")
	}

	// Validate worker scheduling
	if c.Workers.EvaluationHour < 0 || c.Workers.EvaluationHour > 23 {
		return fmt.Errorf("evaluation_hour must be between 0 and 23")
	}
	if c.Workers.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1")
	}

	// Telegram is optional, but a token without a chat is a misconfiguration
	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram chat_id is required when bot token is set")
	}

	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse host is required when clickhouse is enabled")
	}
	if c.Redis.Enabled && c.Redis.Host == "" {
		return fmt.Errorf("redis host is required when redis is enabled")
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
