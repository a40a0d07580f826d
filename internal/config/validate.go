package config

import (
	"fmt"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

func oneOf(issues []ValidationIssue, path, value string, valid []string) []ValidationIssue {
	if value != "" && !slices.Contains(valid, value) {
		issues = append(issues, ValidationIssue{
			Path:    path,
			Message: fmt.Sprintf("must be one of %v, got %q", valid, value),
		})
	}
	return issues
}

func validPort(issues []ValidationIssue, path string, port int) []ValidationIssue {
	if port < 0 || port > 65535 {
		issues = append(issues, ValidationIssue{
			Path:    path,
			Message: fmt.Sprintf("port must be 0-65535, got %d", port),
		})
	}
	return issues
}

// Validate checks a Config for issues. Returns nil if valid.
func Validate(cfg *Config) []ValidationIssue {
	var issues []ValidationIssue

	// Hotel catalog
	if len(cfg.Hotel.Rooms) == 0 {
		issues = append(issues, ValidationIssue{Path: "hotel.roomTypes", Message: "at least one room type is required"})
	}
	for _, name := range cfg.Hotel.RoomNames() {
		rt := cfg.Hotel.Rooms[name]
		if rt.Price <= 0 {
			issues = append(issues, ValidationIssue{
				Path:    "hotel.roomTypes." + name + ".price",
				Message: fmt.Sprintf("price must be positive, got %d", rt.Price),
			})
		}
		if rt.Capacity <= 0 {
			issues = append(issues, ValidationIssue{
				Path:    "hotel.roomTypes." + name + ".capacity",
				Message: fmt.Sprintf("capacity must be positive, got %d", rt.Capacity),
			})
		}
	}

	// Storage
	issues = oneOf(issues, "storage.driver", cfg.Storage.Driver, []string{"sqlite", "postgres", "file", "memory"})
	if cfg.Storage.Driver == "postgres" && cfg.Storage.DSN == "" {
		issues = append(issues, ValidationIssue{Path: "storage.dsn", Message: "required when driver is postgres"})
	}

	// Session
	issues = oneOf(issues, "session.store", cfg.Session.Store, []string{"sqlite", "postgres", "redis", "file", "memory"})
	if cfg.Session.Store == "postgres" && cfg.Storage.Driver != "postgres" {
		issues = append(issues, ValidationIssue{Path: "session.store", Message: "postgres sessions require storage.driver: postgres"})
	}
	if cfg.Session.IdleMinutes < 0 {
		issues = append(issues, ValidationIssue{
			Path:    "session.idleMinutes",
			Message: fmt.Sprintf("must be >= 0, got %d", cfg.Session.IdleMinutes),
		})
	}
	if cfg.Session.Store == "redis" && cfg.Session.Redis.Addr == "" {
		issues = append(issues, ValidationIssue{Path: "session.redis.addr", Message: "required when store is redis"})
	}

	// Text generation
	validProviders := []string{"openai", "ollama", "none"}
	issues = oneOf(issues, "llm.provider", cfg.LLM.Provider, validProviders)
	if cfg.LLM.Provider == "openai" || cfg.LLM.Provider == "ollama" {
		if cfg.LLM.Model == "" {
			issues = append(issues, ValidationIssue{Path: "llm.model", Message: "required when provider is " + cfg.LLM.Provider})
		}
	}
	if cfg.LLM.Provider == "openai" && cfg.LLM.APIKey == "" {
		issues = append(issues, ValidationIssue{Path: "llm.apiKey", Message: "required when provider is openai"})
	}
	if t := cfg.LLM.Temperature; t != nil && (*t < 0 || *t > 2) {
		issues = append(issues, ValidationIssue{
			Path:    "llm.temperature",
			Message: fmt.Sprintf("must be 0-2, got %g", *t),
		})
	}
	for i, fb := range cfg.LLM.Fallbacks {
		path := fmt.Sprintf("llm.fallbacks[%d]", i)
		issues = oneOf(issues, path+".provider", fb.Provider, []string{"openai", "ollama"})
		if fb.Model == "" {
			issues = append(issues, ValidationIssue{Path: path + ".model", Message: "model is required"})
		}
	}

	// Notifier
	issues = oneOf(issues, "notifier.mode", cfg.Notifier.Mode, []string{"log", "channel", "none"})

	// Gateway
	issues = validPort(issues, "gateway.port", cfg.Gateway.Port)
	issues = oneOf(issues, "gateway.bind", cfg.Gateway.Bind, []string{"loopback", "lan", "custom"})
	if cfg.Gateway.Bind == "custom" && cfg.Gateway.CustomBindHost == "" {
		issues = append(issues, ValidationIssue{Path: "gateway.customBindHost", Message: "required when bind is custom"})
	}
	issues = oneOf(issues, "gateway.auth.mode", cfg.Gateway.Auth.Mode, []string{"none", "token", "password"})
	if cfg.Gateway.RateLimit.PerMinute < 0 || cfg.Gateway.RateLimit.Burst < 0 {
		issues = append(issues, ValidationIssue{Path: "gateway.rateLimit", Message: "limits must be >= 0"})
	}

	// IRC (only if configured)
	if irc := cfg.Channels.IRC; irc != nil {
		if irc.Server == "" {
			issues = append(issues, ValidationIssue{Path: "channels.irc.server", Message: "server is required"})
		}
		if irc.Nick == "" {
			issues = append(issues, ValidationIssue{Path: "channels.irc.nick", Message: "nick is required"})
		}
		issues = validPort(issues, "channels.irc.port", irc.Port)
		if irc.SASL && irc.Password == "" {
			issues = append(issues, ValidationIssue{Path: "channels.irc.sasl", Message: "SASL requires a password to be set"})
		}
	}
	if cfg.Notifier.Mode == "channel" && cfg.Channels.IRC == nil {
		issues = append(issues, ValidationIssue{Path: "notifier.mode", Message: "channel mode needs channels.irc"})
	}

	// Logging
	issues = oneOf(issues, "logging.level", cfg.Logging.Level,
		[]string{"silent", "fatal", "error", "warn", "info", "debug", "trace"})
	issues = oneOf(issues, "logging.consoleStyle", cfg.Logging.ConsoleStyle, []string{"pretty", "json"})

	return issues
}
