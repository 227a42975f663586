// Package logger builds the server's loggers. The MCP layer logs through slog
// and the GitHub fetch layer through zerolog; both share one level and write
// JSON to stderr so stdout stays free for stdio framing.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// ServiceName is attached to every log line
const ServiceName = "al-go-mcp-server"

// ParseLevel converts a level name to a slog level.
// Valid levels are: debug, info, warn, error
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", level)
	}
}

// NewLogger creates a new structured JSON logger with the specified log level.
// A nil output writes to stderr.
func NewLogger(level string, output io.Writer) (*slog.Logger, error) {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	if output == nil {
		output = os.Stderr
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{Level: slogLevel})
	return slog.New(handler).With("service", ServiceName), nil
}

// NewZerolog creates the fetch-layer logger at the same level as NewLogger.
func NewZerolog(level string, output io.Writer) (zerolog.Logger, error) {
	slogLevel, err := ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), err
	}

	if output == nil {
		output = os.Stderr
	}

	zl := zerolog.New(output).
		Level(zerologLevel(slogLevel)).
		With().
		Timestamp().
		Str("service", ServiceName).
		Logger()
	return zl, nil
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l <= slog.LevelDebug:
		return zerolog.DebugLevel
	case l <= slog.LevelInfo:
		return zerolog.InfoLevel
	case l <= slog.LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// Default creates a logger with info level and stderr output
func Default() *slog.Logger {
	logger, _ := NewLogger("info", os.Stderr)
	return logger
}
