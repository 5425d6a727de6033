// Package config reads keyaudit's XMTP_* environment. Command-line flags
// override anything set here.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Config is the environment-level configuration.
type Config struct {
	Env      string
	APIURL   string
	Timeout  time.Duration
	LogLevel slog.Level
	KeyStore string
}

// DefaultTimeout bounds each MessageApi RPC.
var DefaultTimeout = 30 * time.Second

// FromEnv builds a Config from the process environment.
func FromEnv() (Config, error) {
	return fromLookup(os.Getenv)
}

func fromLookup(getenv func(string) string) (Config, error) {
	cfg := Config{
		Env:      "dev",
		APIURL:   strings.TrimSpace(getenv("XMTP_API_URL")),
		Timeout:  DefaultTimeout,
		LogLevel: slog.LevelWarn,
		KeyStore: strings.TrimSpace(getenv("XMTP_KEYSTORE")),
	}
	if env := strings.TrimSpace(getenv("XMTP_ENV")); env != "" {
		cfg.Env = env
	}
	if raw := strings.TrimSpace(getenv("XMTP_TIMEOUT")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("XMTP_TIMEOUT: invalid duration %q", raw)
		}
		cfg.Timeout = d
	}
	if raw := strings.TrimSpace(getenv("XMTP_LOG_LEVEL")); raw != "" {
		lvl, err := ParseLevel(raw)
		if err != nil {
			return Config{}, fmt.Errorf("XMTP_LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = lvl
	}
	return cfg, nil
}

// ParseLevel accepts debug, info, warn (or warning) and error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger returns a text logger on w at the configured level.
func (c Config) Logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.LogLevel}))
}
