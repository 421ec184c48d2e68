package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds all configuration for the application.
type Config struct {
	Port            string        `env:"PORT" default:"8000"`
	TokenSecret     string        `env:"TOKEN_SECRET"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" default:"10s"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	HubCapacity       int           `env:"HUB_CAPACITY" default:"1024"`
	InactiveThreshold time.Duration `env:"INACTIVE_THRESHOLD" default:"30s"`
	SweepInterval     time.Duration `env:"SWEEP_INTERVAL" default:"30s"`
	KeepAliveInterval time.Duration `env:"KEEPALIVE_INTERVAL" default:"15s"`
	MaxMessageLength  int           `env:"MAX_MESSAGE_LENGTH" default:"500"`
	RoomCreateRate    int           `env:"ROOM_CREATE_RATE" default:"10"` // per minute per IP

	TracingEnabled     bool   `env:"PUBSUB_TRACING_ENABLED" default:"false"`
	TracingServiceName string `env:"PUBSUB_TRACING_SERVICE_NAME" default:"chathub"`
	TracingZipkinURL   string `env:"PUBSUB_TRACING_ZIPKIN_URL" default:"http://localhost:9411/api/v2/spans"`
}

// Provider exposes configuration to the server and CLI. It lets tests supply
// fixed values without touching the environment.
type Provider interface {
	GetPort() string
	GetTokenSecret() string
	GetShutdownTimeout() time.Duration
	GetHubCapacity() int
	GetInactiveThreshold() time.Duration
	GetSweepInterval() time.Duration
	GetKeepAliveInterval() time.Duration
	GetMaxMessageLength() int
	GetRoomCreateRate() int
}

var _ Provider = (*Config)(nil)

// Load reads .env if present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found, relying on environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.TokenSecret == "" {
		return errors.New("TOKEN_SECRET is required")
	}
	if c.Port == "" {
		return errors.New("PORT is required")
	}

	durations := []struct {
		name  string
		value time.Duration
	}{
		{"SHUTDOWN_TIMEOUT", c.ShutdownTimeout},
		{"INACTIVE_THRESHOLD", c.InactiveThreshold},
		{"SWEEP_INTERVAL", c.SweepInterval},
		{"KEEPALIVE_INTERVAL", c.KeepAliveInterval},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return fmt.Errorf("%s must be positive, got %s", d.name, d.value)
		}
	}

	if c.HubCapacity <= 0 {
		return fmt.Errorf("HUB_CAPACITY must be positive, got %d", c.HubCapacity)
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive, got %d", c.MaxMessageLength)
	}
	if c.RoomCreateRate <= 0 {
		return fmt.Errorf("ROOM_CREATE_RATE must be positive, got %d", c.RoomCreateRate)
	}
	return nil
}

func (c *Config) GetPort() string                     { return c.Port }
func (c *Config) GetTokenSecret() string              { return c.TokenSecret }
func (c *Config) GetShutdownTimeout() time.Duration   { return c.ShutdownTimeout }
func (c *Config) GetHubCapacity() int                 { return c.HubCapacity }
func (c *Config) GetInactiveThreshold() time.Duration { return c.InactiveThreshold }
func (c *Config) GetSweepInterval() time.Duration     { return c.SweepInterval }
func (c *Config) GetKeepAliveInterval() time.Duration { return c.KeepAliveInterval }
func (c *Config) GetMaxMessageLength() int            { return c.MaxMessageLength }
func (c *Config) GetRoomCreateRate() int              { return c.RoomCreateRate }
