package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/rewired-gh/causaloracle/internal/causality"
)

// Config represents the complete application configuration
type Config struct {
	Polymarket PolymarketConfig `mapstructure:"polymarket"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Sources    SourcesConfig    `mapstructure:"sources"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PolymarketConfig holds Polymarket API configuration
type PolymarketConfig struct {
	APIBaseURL        string        `mapstructure:"api_base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryDelayBase    time.Duration `mapstructure:"retry_delay_base"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Limit             int           `mapstructure:"limit"`
}

// EngineConfig tunes graph building and prediction.
type EngineConfig struct {
	TrustedSources []string `mapstructure:"trusted_sources"`
	MaxChains      int      `mapstructure:"max_chains"`
	MaxPredictions int      `mapstructure:"max_predictions"`
	Workers        int      `mapstructure:"workers"`
}

// SourcesConfig locates the source document file.
type SourcesConfig struct {
	Path string `mapstructure:"path"`
}

// WatchConfig holds the periodic re-prediction loop configuration
type WatchConfig struct {
	EventIDs       []string      `mapstructure:"event_ids"`
	Interval       time.Duration `mapstructure:"interval"`
	ShiftThreshold float64       `mapstructure:"shift_threshold"`
	Cooldown       time.Duration `mapstructure:"cooldown"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds storage and persistence configuration
type StorageConfig struct {
	DBPath          string `mapstructure:"db_path"`
	MaxRunsPerEvent int    `mapstructure:"max_runs_per_event"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// CAUSAL_ORACLE_TELEGRAM_BOT_TOKEN overrides telegram.bot_token
	v.SetEnvPrefix("CAUSAL_ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	defaults := causality.DefaultOptions()

	// Polymarket defaults
	v.SetDefault("polymarket.api_base_url", "https://gamma-api.polymarket.com")
	v.SetDefault("polymarket.timeout", "30s")
	v.SetDefault("polymarket.max_retries", 3)
	v.SetDefault("polymarket.retry_delay_base", "2s")
	v.SetDefault("polymarket.requests_per_second", 5.0)
	v.SetDefault("polymarket.limit", 20)

	// Engine defaults
	v.SetDefault("engine.trusted_sources", defaults.TrustedSources)
	v.SetDefault("engine.max_chains", defaults.MaxChains)
	v.SetDefault("engine.max_predictions", defaults.MaxPredictions)
	v.SetDefault("engine.workers", defaults.Workers)

	v.SetDefault("sources.path", "./data/sources.yaml")

	// Watch defaults
	v.SetDefault("watch.event_ids", []string{})
	v.SetDefault("watch.interval", "15m")
	v.SetDefault("watch.shift_threshold", 0.10)
	v.SetDefault("watch.cooldown", "6h")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/causaloracle.db")
	v.SetDefault("storage.max_runs_per_event", 50)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Polymarket config
	if c.Polymarket.APIBaseURL == "" {
		return fmt.Errorf("polymarket.api_base_url is required")
	}
	if c.Polymarket.Timeout <= 0 {
		return fmt.Errorf("polymarket.timeout must be positive")
	}
	if c.Polymarket.MaxRetries < 0 {
		return fmt.Errorf("polymarket.max_retries must not be negative")
	}
	if c.Polymarket.RequestsPerSecond <= 0 {
		return fmt.Errorf("polymarket.requests_per_second must be positive")
	}
	if c.Polymarket.Limit < 1 {
		return fmt.Errorf("polymarket.limit must be at least 1")
	}

	// Validate Engine config
	if c.Engine.MaxChains < 1 || c.Engine.MaxChains > causality.ChainLimit {
		return fmt.Errorf("engine.max_chains must be between 1 and %d", causality.ChainLimit)
	}
	if c.Engine.MaxPredictions < 1 || c.Engine.MaxPredictions > causality.PredictionLimit {
		return fmt.Errorf("engine.max_predictions must be between 1 and %d", causality.PredictionLimit)
	}
	if c.Engine.Workers < 1 {
		return fmt.Errorf("engine.workers must be at least 1")
	}

	// Validate Watch config
	if c.Watch.Interval < 1*time.Minute {
		return fmt.Errorf("watch.interval must be at least 1 minute")
	}
	if c.Watch.ShiftThreshold <= 0.0 || c.Watch.ShiftThreshold > 1.0 {
		return fmt.Errorf("watch.shift_threshold must be in (0.0, 1.0]")
	}
	if c.Watch.Cooldown < 0 {
		return fmt.Errorf("watch.cooldown must not be negative")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Storage.MaxRunsPerEvent < 1 {
		return fmt.Errorf("storage.max_runs_per_event must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// EngineOptions returns the engine section as causality options.
func (c *Config) EngineOptions() causality.Options {
	return causality.Options{
		TrustedSources: c.Engine.TrustedSources,
		MaxChains:      c.Engine.MaxChains,
		MaxPredictions: c.Engine.MaxPredictions,
		Workers:        c.Engine.Workers,
	}
}
