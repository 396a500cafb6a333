package billing

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger opens the configured log file and returns a JSON logger writing to it.
// With no log file configured, logs are discarded; the returned closer is never nil.
func NewLogger(config *Config) (*slog.Logger, io.Closer, error) {
	if config.LogFile == "" {
		return slog.New(slog.NewJSONHandler(io.Discard, nil)), io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(config.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot open log file: %w", err)
	}

	var level slog.Level
	switch strings.ToLower(config.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", "billing-cli"), f, nil
}
