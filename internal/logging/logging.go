// Package logging initializes the structured logging system for CountNet-Go.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu            sync.Mutex
	defaultLogger *slog.Logger
)

// Init initializes the logging system. JSON output goes to stdout for log
// collectors, with the level controlled by the COUNTNET_LOG_LEVEL environment
// variable (debug, info, warn, error).
func Init() {
	mu.Lock()
	defer mu.Unlock()
	if defaultLogger == nil {
		setDefaultLocked(os.Stdout)
	}
}

// EnableFileLogging reroutes the default logger to write JSON records to the
// given path with size-based rotation, in addition to stdout. The returned
// closer flushes and closes the file; call it on shutdown.
func EnableFileLogging(path string) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}

	mu.Lock()
	setDefaultLocked(io.MultiWriter(os.Stdout, rotator))
	mu.Unlock()

	return rotator.Close, nil
}

// ForService returns a logger carrying a service attribute, creating the
// default logger first if Init has not run yet.
func ForService(service string) *slog.Logger {
	Init()
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger.With("service", service)
}

func setDefaultLocked(w io.Writer) {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: levelFromEnv(),
	})
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func levelFromEnv() slog.Level {
	switch os.Getenv("COUNTNET_LOG_LEVEL") {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
