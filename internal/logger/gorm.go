package logger

import (
	"fmt"
	"log/slog"
	"time"

	gormlogger "gorm.io/gorm/logger"
)

// gormWriter adapts slog to gorm's Printf-style writer.
type gormWriter struct {
	l *slog.Logger
}

func (w gormWriter) Printf(format string, args ...any) {
	w.l.Info(fmt.Sprintf(format, args...))
}

// NewGormLogger routes gorm's SQL logging through slog. Record-not-found is
// a normal outcome in this codebase and is not logged as an error.
func NewGormLogger(l *slog.Logger, level string) gormlogger.Interface {
	lvl := gormlogger.Warn
	switch level {
	case "debug":
		lvl = gormlogger.Info
	case "error":
		lvl = gormlogger.Error
	}
	return gormlogger.New(gormWriter{l: l.With("subsystem", "gorm")}, gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  lvl,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
