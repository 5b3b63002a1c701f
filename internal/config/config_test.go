package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
polymarket:
  api_base_url: "https://gamma-api.polymarket.com"
  timeout: 10s
  requests_per_second: 2

engine:
  trusted_sources:
    - reuters
    - local gazette
  max_chains: 5
  workers: 2

sources:
  path: "./testdata/sources.yaml"

watch:
  event_ids:
    - "12345"
    - "67890"
  interval: 30m
  shift_threshold: 0.05

telegram:
  bot_token: "test_token"
  chat_id: "test_chat_id"
  enabled: true

storage:
  db_path: "./data/test.db"
  max_runs_per_event: 20

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Polymarket.Timeout != 10*time.Second {
		t.Errorf("Unexpected timeout: %v", cfg.Polymarket.Timeout)
	}
	if cfg.Polymarket.MaxRetries != 3 {
		t.Errorf("Expected default max_retries 3, got %d", cfg.Polymarket.MaxRetries)
	}
	if len(cfg.Watch.EventIDs) != 2 {
		t.Errorf("Expected 2 event ids, got %d", len(cfg.Watch.EventIDs))
	}
	if cfg.Watch.ShiftThreshold != 0.05 {
		t.Errorf("Unexpected shift threshold: %f", cfg.Watch.ShiftThreshold)
	}
	if cfg.Watch.Cooldown != 6*time.Hour {
		t.Errorf("Expected default cooldown 6h, got %v", cfg.Watch.Cooldown)
	}

	opts := cfg.EngineOptions()
	if opts.MaxChains != 5 || opts.Workers != 2 || opts.MaxPredictions != 2 {
		t.Errorf("Unexpected engine options: %+v", opts)
	}
	if len(opts.TrustedSources) != 2 || opts.TrustedSources[1] != "local gazette" {
		t.Errorf("Unexpected trusted sources: %v", opts.TrustedSources)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Polymarket.APIBaseURL != "https://gamma-api.polymarket.com" {
		t.Errorf("Unexpected API URL: %s", cfg.Polymarket.APIBaseURL)
	}
	if cfg.Engine.MaxChains != 10 {
		t.Errorf("Expected max_chains 10, got %d", cfg.Engine.MaxChains)
	}
	if len(cfg.Engine.TrustedSources) == 0 {
		t.Error("Expected default trusted sources")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoadEnvironmentOverride(t *testing.T) {
	t.Setenv("CAUSAL_ORACLE_TELEGRAM_BOT_TOKEN", "from_env")
	t.Setenv("CAUSAL_ORACLE_STORAGE_DB_PATH", "/tmp/env.db")

	cfg, err := Load(writeConfig(t, "telegram:\n  bot_token: from_file\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Telegram.BotToken != "from_env" {
		t.Errorf("Expected env bot token, got %q", cfg.Telegram.BotToken)
	}
	if cfg.Storage.DBPath != "/tmp/env.db" {
		t.Errorf("Expected env db path, got %q", cfg.Storage.DBPath)
	}
}

func TestLoadEnvironmentExceedsEngineLimits(t *testing.T) {
	t.Setenv("CAUSAL_ORACLE_ENGINE_MAX_CHAINS", "50")
	t.Setenv("CAUSAL_ORACLE_ENGINE_MAX_PREDICTIONS", "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Engine.MaxChains != 50 || cfg.Engine.MaxPredictions != 5 {
		t.Fatalf("Expected env overrides, got chains=%d predictions=%d", cfg.Engine.MaxChains, cfg.Engine.MaxPredictions)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Expected validation error for oversized engine limits")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func validConfig() *Config {
	return &Config{
		Polymarket: PolymarketConfig{
			APIBaseURL:        "https://example.com",
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RequestsPerSecond: 5,
			Limit:             20,
		},
		Engine: EngineConfig{MaxChains: 10, MaxPredictions: 2, Workers: 4},
		Watch: WatchConfig{
			Interval:       15 * time.Minute,
			ShiftThreshold: 0.10,
			Cooldown:       time.Hour,
		},
		Storage: StorageConfig{DBPath: "./data/test.db", MaxRunsPerEvent: 50},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}, wantErr: false},
		{
			name: "missing telegram token when enabled",
			mutate: func(c *Config) {
				c.Telegram = TelegramConfig{Enabled: true, ChatID: "1"}
			},
			wantErr: true,
		},
		{
			name:    "missing api url",
			mutate:  func(c *Config) { c.Polymarket.APIBaseURL = "" },
			wantErr: true,
		},
		{
			name:    "invalid shift threshold",
			mutate:  func(c *Config) { c.Watch.ShiftThreshold = 1.5 },
			wantErr: true,
		},
		{
			name:    "zero shift threshold",
			mutate:  func(c *Config) { c.Watch.ShiftThreshold = 0 },
			wantErr: true,
		},
		{
			name:    "watch interval too short",
			mutate:  func(c *Config) { c.Watch.Interval = 10 * time.Second },
			wantErr: true,
		},
		{
			name:    "no chains",
			mutate:  func(c *Config) { c.Engine.MaxChains = 0 },
			wantErr: true,
		},
		{
			name:    "too many chains",
			mutate:  func(c *Config) { c.Engine.MaxChains = 11 },
			wantErr: true,
		},
		{
			name:    "too many predictions",
			mutate:  func(c *Config) { c.Engine.MaxPredictions = 3 },
			wantErr: true,
		},
		{
			name:    "single prediction",
			mutate:  func(c *Config) { c.Engine.MaxPredictions = 1 },
			wantErr: false,
		},
		{
			name:    "no workers",
			mutate:  func(c *Config) { c.Engine.Workers = 0 },
			wantErr: true,
		},
		{
			name:    "missing db path",
			mutate:  func(c *Config) { c.Storage.DBPath = "" },
			wantErr: true,
		},
		{
			name:    "unknown log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
