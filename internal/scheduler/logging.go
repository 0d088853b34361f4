package scheduler

import (
	"log/slog"
	"sync"

	"github.com/nudgeworks/nudge-go/internal/logging"
)

var (
	schedulerLogger   *slog.Logger
	schedulerLevelVar = new(slog.LevelVar)
	loggerCloseFunc   func() error
	loggerOnce        sync.Once

	defaultLogPath = "logs/scheduler.log"
)

// InitializeLogger initializes the scheduler file logger. Safe to call
// multiple times; initialization happens only once.
func InitializeLogger(logFilePath string) error {
	var initErr error

	loggerOnce.Do(func() {
		if logFilePath == "" {
			logFilePath = defaultLogPath
		}
		schedulerLevelVar.Set(slog.LevelInfo)

		var err error
		schedulerLogger, loggerCloseFunc, err = logging.NewFileLogger(
			logFilePath, "scheduler", schedulerLevelVar, logging.FileLoggerOptions{})
		if err != nil {
			schedulerLogger = getLoggerSafe()
			loggerCloseFunc = func() error { return nil }
			initErr = err
		}
	})

	return initErr
}

func getLogger() *slog.Logger {
	if schedulerLogger != nil {
		return schedulerLogger
	}
	return getLoggerSafe()
}

func getLoggerSafe() *slog.Logger {
	logger := logging.ForService("scheduler")
	if logger == nil {
		logger = slog.Default().With("service", "scheduler")
	}
	return logger
}

// CloseLogger closes the scheduler log file.
func CloseLogger() error {
	if loggerCloseFunc != nil {
		return loggerCloseFunc()
	}
	return nil
}
