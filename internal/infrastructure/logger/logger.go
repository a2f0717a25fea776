package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
}

// New builds the process logger and installs it as slog's default.
func New(cfg Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}
	l := slog.New(h)
	slog.SetDefault(l)
	return l
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// GormLevel maps the app level onto gorm's logger; SQL statements are only
// traced in debug.
func GormLevel(level string) gormlogger.LogLevel {
	switch ParseLevel(level) {
	case slog.LevelDebug:
		return gormlogger.Info
	case slog.LevelError:
		return gormlogger.Error
	default:
		return gormlogger.Warn
	}
}
