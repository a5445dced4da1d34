package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/bz-harshitha-alikepalli/example-collab-ide/pkg/protocol"
)

// Default configuration values
const (
	DefaultPort           = "8080"
	DefaultMaxMessageSize = protocol.MaxFrameSize // 64 KB - enough for SDP offers and large documents
	DefaultSendBuffer     = 256
	DefaultRateLimit      = 50.0
	DefaultRateBurst      = 100
)

// Config holds server configuration
type Config struct {
	// Port the HTTP server listens on
	Port string

	// LogLevel and LogFormat feed the logging package
	LogLevel  string
	LogFormat string

	// MaxMessageSize is the read limit for a single websocket frame
	MaxMessageSize int64

	// SendBuffer is the per-connection outbound queue length
	SendBuffer int

	// RateLimit and RateBurst bound inbound events per connection
	RateLimit float64
	RateBurst int
}

// Load reads configuration from the environment, after loading an optional
// .env file from the working directory.
// Priority: environment variables > .env file > defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg := &Config{
		Port:      envOr("PORT", DefaultPort),
		LogLevel:  os.Getenv("LOG_LEVEL"),
		LogFormat: os.Getenv("LOG_FORMAT"),
	}

	var err error
	if cfg.MaxMessageSize, err = envInt64("MAX_MESSAGE_SIZE", DefaultMaxMessageSize); err != nil {
		return nil, err
	}

	sendBuffer, err := envInt64("SEND_BUFFER", DefaultSendBuffer)
	if err != nil {
		return nil, err
	}
	cfg.SendBuffer = int(sendBuffer)

	if cfg.RateLimit, err = envFloat("RATE_LIMIT", DefaultRateLimit); err != nil {
		return nil, err
	}

	burst, err := envInt64("RATE_BURST", DefaultRateBurst)
	if err != nil {
		return nil, err
	}
	cfg.RateBurst = int(burst)

	if cfg.SendBuffer <= 0 || cfg.RateBurst <= 0 || cfg.MaxMessageSize <= 0 {
		return nil, fmt.Errorf("SEND_BUFFER, RATE_BURST and MAX_MESSAGE_SIZE must be positive")
	}

	return cfg, nil
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
