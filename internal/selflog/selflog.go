// Copyright (c) 2025 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package selflog is the SDK's internal diagnostics logger.
//
// It writes JSON lines to stderr via log/slog at the level configured
// through OTEL_LOG_LEVEL (debug, info, warn, error; default info).
// Nothing logged here flows through the telemetry pipeline.
package selflog

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	initOnce sync.Once
	logger   *slog.Logger

	onceMu   sync.Mutex
	onceSeen map[string]struct{}
)

// Logger returns the shared diagnostics logger.
func Logger() *slog.Logger {
	initOnce.Do(func() {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: levelFromEnv(),
		}))
	})
	return logger
}

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("OTEL_LOG_LEVEL"))) {
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

// Error logs msg at error level.
func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}

// Warn logs msg at warn level.
func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

// Debug logs msg at debug level.
func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

// WarnOnce logs msg at warn level the first time it is called with the
// given key and is silent afterwards. Used for per-instrument warnings
// that would otherwise repeat on every measurement.
func WarnOnce(key, msg string, args ...any) {
	onceMu.Lock()
	if onceSeen == nil {
		onceSeen = make(map[string]struct{})
	}
	_, seen := onceSeen[key]
	if !seen {
		onceSeen[key] = struct{}{}
	}
	onceMu.Unlock()

	if !seen {
		Logger().Warn(msg, args...)
	}
}
