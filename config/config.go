// Package config loads the booker's settings from TOURBOOK_* environment
// variables (and a .env file when present) and validates them.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"tour-booker/client"
)

const envPrefix = "TOURBOOK_"

// Config is the root configuration. Keys map from env names with the
// prefix removed and lowercased: TOURBOOK_PROXY_FILE -> proxy_file.
type Config struct {
	Endpoint      string        `koanf:"endpoint" validate:"required,url"`
	Timeout       time.Duration `koanf:"timeout" validate:"gte=0"`
	Fingerprint   bool          `koanf:"fingerprint"`
	ProxyFile     string        `koanf:"proxy_file" validate:"omitempty,filepath"`
	UserAgentFile string        `koanf:"user_agent_file" validate:"omitempty,filepath"`
	FormSelector  string        `koanf:"form_selector" validate:"required"`
	LogLevel      string        `koanf:"log_level" validate:"required,oneof=trace debug info warn error fatal panic disabled"`
	LogPretty     bool          `koanf:"log_pretty"`
	// LogFile receives one JSON line per submission when set.
	LogFile string `koanf:"log_file"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Endpoint:     client.DefaultEndpoint,
		FormSelector: "form",
		LogLevel:     "info",
		LogPretty:    true,
	}
}

// Load reads TOURBOOK_* variables over Default and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")

	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
