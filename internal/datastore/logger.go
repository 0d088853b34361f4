// Package datastore provides logging infrastructure for database operations
package datastore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nudgeworks/nudge-go/internal/logging"
)

// Package-level logger for datastore operations
var (
	datastoreLogger   *slog.Logger
	datastoreLevelVar = new(slog.LevelVar)
	loggerCloseFunc   func() error
	loggerOnce        sync.Once

	// defaultLogPath follows the project-wide convention of a "logs/"
	// directory for all file loggers.
	defaultLogPath = "logs/datastore.log"
)

// InitializeLogger initializes the datastore file logger. Safe to call
// multiple times; initialization happens only once.
func InitializeLogger(logFilePath string) error {
	var initErr error

	loggerOnce.Do(func() {
		if logFilePath == "" {
			logFilePath = defaultLogPath
		}
		datastoreLevelVar.Set(slog.LevelInfo)

		var err error
		datastoreLogger, loggerCloseFunc, err = logging.NewFileLogger(
			logFilePath, "datastore", datastoreLevelVar, logging.FileLoggerOptions{})
		if err != nil {
			// Fall back to the service logger instead of failing
			datastoreLogger = getLoggerSafe()
			loggerCloseFunc = func() error { return nil }
			initErr = err
		}
	})

	return initErr
}

// getLogger returns the datastore logger, falling back to a service logger
// when the file logger was never initialized.
func getLogger() *slog.Logger {
	if datastoreLogger != nil {
		return datastoreLogger
	}
	return getLoggerSafe()
}

func getLoggerSafe() *slog.Logger {
	logger := logging.ForService("datastore")
	if logger == nil {
		logger = slog.Default().With("service", "datastore")
	}
	return logger
}

// CloseLogger closes the datastore log file.
func CloseLogger() error {
	if loggerCloseFunc != nil {
		return loggerCloseFunc()
	}
	return nil
}

// DefaultSlowQueryThreshold defines the duration after which a query is
// considered slow. Migration batch queries can take most of a second, so
// anything shorter produces noise.
const DefaultSlowQueryThreshold = 1 * time.Second

// gormSlogLogger adapts slog to the GORM logger interface.
type gormSlogLogger struct {
	logger        *slog.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// createGormLogger configures and returns a new GORM logger instance.
func createGormLogger() gormlogger.Interface {
	return &gormSlogLogger{
		logger:        getLogger(),
		level:         gormlogger.Warn,
		slowThreshold: DefaultSlowQueryThreshold,
	}
}

func (l *gormSlogLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.level = level
	return &clone
}

func (l *gormSlogLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.logger.InfoContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormSlogLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.logger.WarnContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormSlogLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.logger.ErrorContext(ctx, fmt.Sprintf(msg, data...))
	}
}

func (l *gormSlogLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && l.level >= gormlogger.Error && !isRecordNotFound(err):
		l.logger.ErrorContext(ctx, "query failed",
			"error", err,
			"elapsed", elapsed,
			"rows", rows,
			"sql", sql)
	case l.slowThreshold > 0 && elapsed > l.slowThreshold && l.level >= gormlogger.Warn:
		l.logger.WarnContext(ctx, "slow query",
			"elapsed", elapsed,
			"threshold", l.slowThreshold,
			"rows", rows,
			"sql", sql)
	case l.level >= gormlogger.Info:
		l.logger.InfoContext(ctx, "query",
			"elapsed", elapsed,
			"rows", rows,
			"sql", sql)
	}
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
