// Package logging builds the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects level and output format.
type Config struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads LOG_LEVEL (debug|info|warn|error) and LOG_FORMAT (json|text).
func LoadConfig() Config {
	return Config{
		Level:  getenv("LOG_LEVEL", "info"),
		Format: getenv("LOG_FORMAT", "json"),
	}
}

// New returns a logger writing to stdout.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter returns a logger writing to w. Unknown formats fall back to JSON.
func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a level name to slog.Level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// CorrelationLogger tags every record with the request correlation and tenant.
func CorrelationLogger(logger *slog.Logger, corrID, tenantID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("corrId", corrID, "tenantId", tenantID)
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
