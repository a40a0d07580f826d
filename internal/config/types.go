package config

import "github.com/soyeahso/concierge/internal/domain"

// Config is the root configuration for the concierge.
type Config struct {
	Hotel    domain.Hotel   `yaml:"hotel,omitempty"`
	Storage  StorageConfig  `yaml:"storage,omitempty"`
	Session  SessionConfig  `yaml:"session,omitempty"`
	LLM      LLMConfig      `yaml:"llm,omitempty"`
	Notifier NotifierConfig `yaml:"notifier,omitempty"`
	Gateway  GatewayConfig  `yaml:"gateway,omitempty"`
	Channels ChannelsConfig `yaml:"channels,omitempty"`
	Hooks    HooksConfig    `yaml:"hooks,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	Metrics  MetricsConfig  `yaml:"metrics,omitempty"`
}

// StorageConfig selects where reservations live.
type StorageConfig struct {
	Driver string `yaml:"driver,omitempty"` // "sqlite" | "postgres" | "file" | "memory"
	DSN    string `yaml:"dsn,omitempty"`    // sqlite path or postgres URL; empty sqlite uses <home>/data/concierge.db
	Dir    string `yaml:"dir,omitempty"`    // directory for the file driver; empty uses <home>/data
}

// SessionConfig defines how dialogue sessions are stored and expired.
type SessionConfig struct {
	Store       string      `yaml:"store,omitempty"` // "sqlite" | "postgres" | "redis" | "file" | "memory"
	IdleMinutes int         `yaml:"idleMinutes,omitempty"`
	Redis       RedisConfig `yaml:"redis,omitempty"`
}

// RedisConfig configures the Redis session store.
type RedisConfig struct {
	Addr      string `yaml:"addr,omitempty"`
	Password  string `yaml:"password,omitempty"`
	DB        int    `yaml:"db,omitempty"`
	KeyPrefix string `yaml:"keyPrefix,omitempty"`
	TTLHours  int    `yaml:"ttlHours,omitempty"` // 0 keeps sessions forever
}

// LLMConfig selects the text-generation backend used for free-form questions.
type LLMConfig struct {
	Provider    string        `yaml:"provider,omitempty"` // "openai" | "ollama" | "none"
	BaseURL     string        `yaml:"baseUrl,omitempty"`
	APIKey      string        `yaml:"apiKey,omitempty"`
	Model       string        `yaml:"model,omitempty"`
	MaxTokens   int           `yaml:"maxTokens,omitempty"`
	Temperature *float64      `yaml:"temperature,omitempty"`
	Fallbacks   []LLMFallback `yaml:"fallbacks,omitempty"`
}

// LLMFallback is a secondary provider tried when the primary fails.
type LLMFallback struct {
	Provider string `yaml:"provider"`
	BaseURL  string `yaml:"baseUrl,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty"`
	Model    string `yaml:"model"`
}

// NotifierConfig selects how replies are pushed to guests.
type NotifierConfig struct {
	Mode string `yaml:"mode,omitempty"` // "log" | "channel" | "none"
}

// GatewayConfig controls the HTTP/WebSocket turn API.
type GatewayConfig struct {
	Port           int             `yaml:"port,omitempty"`
	Bind           string          `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string          `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth     `yaml:"auth,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rateLimit,omitempty"`
	AllowedOrigins []string        `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures gateway authentication.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "none" | "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// RateLimitConfig bounds turns per user on the gateway.
type RateLimitConfig struct {
	PerMinute int `yaml:"perMinute,omitempty"`
	Burst     int `yaml:"burst,omitempty"`
}

// ChannelsConfig defines chat channel configurations.
type ChannelsConfig struct {
	IRC *IRCConfig `yaml:"irc,omitempty"`
}

// IRCConfig defines the IRC guest channel. Guests reach the concierge by
// private message to Nick.
type IRCConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port,omitempty"`
	Nick     string `yaml:"nick"`
	Password string `yaml:"password,omitempty"`
	UseTLS   bool   `yaml:"useTLS,omitempty"`
	SASL     bool   `yaml:"sasl,omitempty"`
}

// HooksConfig defines command hooks per lifecycle event.
type HooksConfig struct {
	TurnReceived           []HookEntry `yaml:"turnReceived,omitempty"`
	ReplySending           []HookEntry `yaml:"replySending,omitempty"`
	FlowStarted            []HookEntry `yaml:"flowStarted,omitempty"`
	BookingCompleted       []HookEntry `yaml:"bookingCompleted,omitempty"`
	ReservationRescheduled []HookEntry `yaml:"reservationRescheduled,omitempty"`
	ReservationNotFound    []HookEntry `yaml:"reservationNotFound,omitempty"`
	FlowAbandoned          []HookEntry `yaml:"flowAbandoned,omitempty"`
	GatewayStart           []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop            []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "json"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Disabled bool   `yaml:"disabled,omitempty"`
	Path     string `yaml:"path,omitempty"`
}
