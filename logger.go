package gogoblin

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig controls the process-wide log sink.
type LogConfig struct {
	Level       string
	FileEnabled bool
	FilePath    string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
}

var (
	baseLoggerMu sync.RWMutex
	baseLogger   = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
)

// SetupLogging replaces the base logger used by NewLogger. Console output is
// always enabled; a rotating file sink is added when cfg.FileEnabled is set.
func SetupLogging(cfg LogConfig) error {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}}
	if cfg.FileEnabled {
		path := cfg.FilePath
		if path == "" {
			path = defaultLogFilePath
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	logger := zerolog.New(io.MultiWriter(writers...)).Level(level).With().Timestamp().Logger()

	baseLoggerMu.Lock()
	baseLogger = logger
	baseLoggerMu.Unlock()
	return nil
}

// NewLogger returns a logger tagged with the component name.
func NewLogger(tag string) zerolog.Logger {
	baseLoggerMu.RLock()
	defer baseLoggerMu.RUnlock()
	return baseLogger.With().Str("component", tag).Logger()
}

// NewDiscardLogger returns a logger that drops all log entries (useful in tests).
func NewDiscardLogger() zerolog.Logger {
	return zerolog.Nop()
}
