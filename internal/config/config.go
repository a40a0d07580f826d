package config

import (
	"fmt"

	"github.com/soyeahso/concierge/internal/domain"
)

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	var cfg Config
	applyDefaults(&cfg)
	return cfg
}

// applyDefaults fills zero-value fields with sensible defaults. A configured
// room catalog replaces the built-in one wholesale.
func applyDefaults(cfg *Config) {
	def := domain.DefaultHotel()
	if cfg.Hotel.Name == "" {
		cfg.Hotel.Name = def.Name
	}
	if cfg.Hotel.Location == "" {
		cfg.Hotel.Location = def.Location
	}
	if len(cfg.Hotel.Amenities) == 0 {
		cfg.Hotel.Amenities = def.Amenities
	}
	if cfg.Hotel.CheckInTime == "" {
		cfg.Hotel.CheckInTime = def.CheckInTime
	}
	if cfg.Hotel.CheckOutTime == "" {
		cfg.Hotel.CheckOutTime = def.CheckOutTime
	}
	if cfg.Hotel.CancellationPolicy == "" {
		cfg.Hotel.CancellationPolicy = def.CancellationPolicy
	}
	if len(cfg.Hotel.Rooms) == 0 {
		cfg.Hotel.Rooms = def.Rooms
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Session.Store == "" {
		cfg.Session.Store = cfg.Storage.Driver
	}
	if cfg.Session.IdleMinutes == 0 {
		cfg.Session.IdleMinutes = 30
	}
	if cfg.Session.Redis.Addr == "" {
		cfg.Session.Redis.Addr = "localhost:6379"
	}
	if cfg.Session.Redis.KeyPrefix == "" {
		cfg.Session.Redis.KeyPrefix = "concierge:session:"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "none"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 512
	}

	if cfg.Notifier.Mode == "" {
		cfg.Notifier.Mode = "log"
	}

	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18790
	}
	if cfg.Gateway.Bind == "" {
		cfg.Gateway.Bind = "loopback"
	}
	if cfg.Gateway.Auth.Mode == "" {
		cfg.Gateway.Auth.Mode = "token"
	}
	if cfg.Gateway.RateLimit.PerMinute == 0 {
		cfg.Gateway.RateLimit.PerMinute = 30
	}
	if cfg.Gateway.RateLimit.Burst == 0 {
		cfg.Gateway.RateLimit.Burst = 10
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.ConsoleStyle == "" {
		cfg.Logging.ConsoleStyle = "pretty"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}
