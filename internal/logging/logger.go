// Package logging provides per-module slog loggers with runtime-configurable
// levels, optional systemd journal output, and a ring buffer of recent
// entries for the API logs endpoint.
package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// Config represents logging configuration.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

var (
	mu            sync.RWMutex
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevels  = make(map[string]*slog.LevelVar)
	globalConfig  Config
	globalLevel   = &slog.LevelVar{}
	initialized   bool
	buffer        = NewRingBuffer(defaultBufferSize)
)

// Initialize sets up the logging system. Loggers created before Initialize
// are rebuilt so they pick up the configured format and per-module levels.
func Initialize(config Config) {
	mu.Lock()
	defer mu.Unlock()

	globalConfig = config
	initialized = true

	level := parseLevel(config.Level, slog.LevelInfo)
	globalLevel.Set(level)

	for module, levelVar := range moduleLevels {
		moduleLevel := level
		if s, ok := config.Modules[module]; ok {
			moduleLevel = parseLevel(s, level)
		}
		levelVar.Set(moduleLevel)
		moduleLoggers[module] = slog.New(newHandler(config.Format, levelVar)).With("module", module)
	}

	slog.SetDefault(slog.New(newHandler(config.Format, globalLevel)))
}

// GetLogger returns a logger for the specified module, creating it if needed.
func GetLogger(module string) *slog.Logger {
	mu.RLock()
	if logger, ok := moduleLoggers[module]; ok {
		mu.RUnlock()
		return logger
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()

	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if initialized {
		level := parseLevel(globalConfig.Level, slog.LevelInfo)
		if s, ok := globalConfig.Modules[module]; ok {
			level = parseLevel(s, level)
		}
		levelVar.Set(level)
		format = globalConfig.Format
	}

	logger := slog.New(newHandler(format, levelVar)).With("module", module)
	moduleLoggers[module] = logger
	moduleLevels[module] = levelVar
	return logger
}

// Buffer returns the ring buffer of recent log entries.
func Buffer() *RingBuffer {
	return buffer
}

// newHandler builds the handler chain: stdout (text or JSON), systemd journal
// when available, and the ring buffer.
func newHandler(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	handlers := []slog.Handler{stdout, NewBufferHandler(buffer, level)}
	if journalAvailable() {
		handlers = append(handlers, NewJournalHandler(level))
	}
	return NewMultiHandler(handlers...)
}

// parseLevel converts a string level to slog.Level, falling back when unknown.
func parseLevel(level string, fallback slog.Level) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}

func levelString(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
