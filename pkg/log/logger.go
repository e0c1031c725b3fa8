// Package log provides structured logging for tsgo, built on log/slog.
//
// The package exposes named component loggers used by the classifiers to
// report search progress, contract expiry and degenerate-data fallbacks.
package log

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
)

const (
	// ErrAttrKey is the attribute key used for error values.
	ErrAttrKey = "error"

	// ComponentKey identifies the component a logger belongs to.
	ComponentKey = "component"
)

var (
	mu            sync.RWMutex
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
)

// SetupLogger installs a JSON slog handler at the given level as the package
// default. Panics on an unknown level, mirroring a misconfiguration being a
// programming error.
func SetupLogger(loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)

	mu.Lock()
	defer mu.Unlock()
	defaultLogger = slog.New(handler)
}

// ToLogLevel converts a level name to a slog.Level.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

// GetLogger returns the package default logger.
func GetLogger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// GetLoggerWithName returns a logger tagged with a component name, e.g.
// "dictionary.boss" or "sfa.binning".
func GetLoggerWithName(name string) *slog.Logger {
	return GetLogger().With(ComponentKey, name)
}

// ErrAttr wraps an error for structured logging.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}
