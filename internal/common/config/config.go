package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds everything the mobile client needs to reach the platform.
type Config struct {
	Gateway Gateway `toml:"gateway"`
	API     API     `toml:"api"`
	Auth    Auth    `toml:"auth"`
	Chat    Chat    `toml:"chat"`
}

type Gateway struct {
	URL              string `toml:"url"`      // e.g. "wss://rt.ridehail.example"
	Path             string `toml:"path"`     // production realtime path
	DevPath          string `toml:"dev_path"` // generic path local gateways listen on
	UseDevPath       bool   `toml:"use_dev_path"`
	ConnectTimeoutMS int    `toml:"connect_timeout_ms"`
	BackoffInitialMS int    `toml:"backoff_initial_ms"`
	BackoffCapMS     int    `toml:"backoff_cap_ms"`
	AckTimeoutMS     int    `toml:"ack_timeout_ms"`
}

type API struct {
	BaseURL string `toml:"base_url"`
}

type Auth struct {
	TokenFile string `toml:"token_file"` // stored identity token (secure storage analog)
	Secret    string `toml:"secret"`     // dev-only HS256 secret for `token` mode
}

type Chat struct {
	HistoryLimit    int `toml:"history_limit"`
	TypingIdleMS    int `toml:"typing_idle_ms"`
	PendingTimeoutS int `toml:"pending_timeout_s"`
}

// LoadFromFile loads config from a TOML file, applies defaults, and validates required fields.
func LoadFromFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets safe defaults for optional fields.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Path == "" {
		cfg.Gateway.Path = "/mobile/v1"
	}
	if cfg.Gateway.DevPath == "" {
		cfg.Gateway.DevPath = "/socket"
	}
	if cfg.Gateway.ConnectTimeoutMS == 0 {
		cfg.Gateway.ConnectTimeoutMS = 10_000
	}
	if cfg.Gateway.BackoffInitialMS == 0 {
		cfg.Gateway.BackoffInitialMS = 800
	}
	if cfg.Gateway.BackoffCapMS == 0 {
		cfg.Gateway.BackoffCapMS = 7_000
	}
	if cfg.Gateway.AckTimeoutMS == 0 {
		cfg.Gateway.AckTimeoutMS = 10_000
	}
	if cfg.Chat.HistoryLimit == 0 {
		cfg.Chat.HistoryLimit = 50
	}
	if cfg.Chat.TypingIdleMS == 0 {
		cfg.Chat.TypingIdleMS = 4_000
	}
	if cfg.Chat.PendingTimeoutS == 0 {
		cfg.Chat.PendingTimeoutS = 15
	}
}

// validate checks required fields and obvious misconfiguration.
func (cfg *Config) validate() error {
	var missing []string

	if strings.TrimSpace(cfg.Gateway.URL) == "" {
		missing = append(missing, "gateway.url")
	}
	if strings.TrimSpace(cfg.API.BaseURL) == "" {
		missing = append(missing, "api.base_url")
	}
	if len(missing) > 0 {
		return errors.New("missing required keys: " + strings.Join(missing, ", "))
	}

	if !strings.HasPrefix(cfg.Gateway.URL, "ws://") && !strings.HasPrefix(cfg.Gateway.URL, "wss://") {
		return fmt.Errorf("gateway.url must be a ws:// or wss:// URL, got %q", cfg.Gateway.URL)
	}
	if cfg.Gateway.BackoffInitialMS > cfg.Gateway.BackoffCapMS {
		return fmt.Errorf("gateway.backoff_initial_ms (%d) exceeds backoff_cap_ms (%d)",
			cfg.Gateway.BackoffInitialMS, cfg.Gateway.BackoffCapMS)
	}

	return nil
}

// SocketPath returns the realtime path for the configured environment.
func (cfg *Config) SocketPath() string {
	if cfg.Gateway.UseDevPath {
		return cfg.Gateway.DevPath
	}
	return cfg.Gateway.Path
}

func (cfg *Config) ConnectTimeout() time.Duration {
	return time.Duration(cfg.Gateway.ConnectTimeoutMS) * time.Millisecond
}

func (cfg *Config) BackoffInitial() time.Duration {
	return time.Duration(cfg.Gateway.BackoffInitialMS) * time.Millisecond
}

func (cfg *Config) BackoffCap() time.Duration {
	return time.Duration(cfg.Gateway.BackoffCapMS) * time.Millisecond
}

func (cfg *Config) AckTimeout() time.Duration {
	return time.Duration(cfg.Gateway.AckTimeoutMS) * time.Millisecond
}

func (cfg *Config) TypingIdle() time.Duration {
	return time.Duration(cfg.Chat.TypingIdleMS) * time.Millisecond
}

func (cfg *Config) PendingTimeout() time.Duration {
	return time.Duration(cfg.Chat.PendingTimeoutS) * time.Second
}
