// Package config loads panel configuration from an optional YAML file
// and environment variables. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all panel configuration.
type Config struct {
	// bridge service (the Telegram-speaking backend)
	BridgeURL string `yaml:"bridge_url"`
	AccountID string `yaml:"account_id"`

	// action queue pacing
	InviteDelay       time.Duration `yaml:"invite_delay"`
	UsernameDelay     time.Duration `yaml:"username_delay"`
	FloodWaitBackoff  time.Duration `yaml:"flood_wait_backoff"`
	ActionTimeout     time.Duration `yaml:"action_timeout"`
	SearchResultLimit int           `yaml:"search_result_limit"`

	// local surfaces
	HTTPPort    int    `yaml:"http_port"`
	HistoryPath string `yaml:"history_path"`
	NatsURL     string `yaml:"nats_url"`

	// logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Load reads the config file named by PANEL_CONFIG (if set and present),
// then applies environment overrides and defaults.
func Load() (*Config, error) {
	cfg := &Config{
		InviteDelay:       5 * time.Second,
		UsernameDelay:     2 * time.Second,
		FloodWaitBackoff:  30 * time.Second,
		ActionTimeout:     2 * time.Minute,
		SearchResultLimit: 200,
	}

	if path := os.Getenv("PANEL_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.BridgeURL = getEnv("BRIDGE_URL", defaultStr(cfg.BridgeURL, "http://localhost:8000"))
	cfg.AccountID = getEnv("ACCOUNT_ID", cfg.AccountID)
	cfg.NatsURL = getEnv("NATS_URL", cfg.NatsURL)
	cfg.HistoryPath = getEnv("HISTORY_PATH", defaultStr(cfg.HistoryPath, "./data/history.db"))
	cfg.LogLevel = getEnv("LOG_LEVEL", defaultStr(cfg.LogLevel, "info"))
	cfg.LogFile = getEnv("LOG_FILE", defaultStr(cfg.LogFile, "./logs/panel.log"))
	cfg.HTTPPort = getEnvInt("HTTP_PORT", defaultInt(cfg.HTTPPort, 3200))

	cfg.InviteDelay = getEnvDuration("INVITE_DELAY", cfg.InviteDelay)
	cfg.UsernameDelay = getEnvDuration("USERNAME_DELAY", cfg.UsernameDelay)
	cfg.FloodWaitBackoff = getEnvDuration("FLOOD_WAIT_BACKOFF", cfg.FloodWaitBackoff)
	cfg.ActionTimeout = getEnvDuration("ACTION_TIMEOUT", cfg.ActionTimeout)
	cfg.SearchResultLimit = getEnvInt("SEARCH_RESULT_LIMIT", cfg.SearchResultLimit)

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

// getEnvDuration parses values like "5s" or "1500ms".
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func defaultStr(v, d string) string {
	if v != "" {
		return v
	}
	return d
}

func defaultInt(v, d int) int {
	if v != 0 {
		return v
	}
	return d
}
