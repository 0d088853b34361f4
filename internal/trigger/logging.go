package trigger

import (
	"log/slog"
	"sync"

	"github.com/nudgeworks/nudge-go/internal/logging"
)

var (
	triggerLogger   *slog.Logger
	triggerLevelVar = new(slog.LevelVar)
	loggerCloseFunc func() error
	loggerOnce      sync.Once

	defaultLogPath = "logs/trigger.log"
)

// InitializeLogger initializes the trigger engine file logger. Safe to call
// multiple times; initialization happens only once.
func InitializeLogger(logFilePath string) error {
	var initErr error

	loggerOnce.Do(func() {
		if logFilePath == "" {
			logFilePath = defaultLogPath
		}
		triggerLevelVar.Set(slog.LevelInfo)

		var err error
		triggerLogger, loggerCloseFunc, err = logging.NewFileLogger(
			logFilePath, "trigger", triggerLevelVar, logging.FileLoggerOptions{})
		if err != nil {
			// Fall back to the service logger instead of failing
			triggerLogger = getLoggerSafe()
			loggerCloseFunc = func() error { return nil }
			initErr = err
		}
	})

	return initErr
}

// getLogger returns the trigger logger, falling back to a service logger when
// the file logger was never initialized.
func getLogger() *slog.Logger {
	if triggerLogger != nil {
		return triggerLogger
	}
	return getLoggerSafe()
}

func getLoggerSafe() *slog.Logger {
	logger := logging.ForService("trigger")
	if logger == nil {
		logger = slog.Default().With("service", "trigger")
	}
	return logger
}

// CloseLogger closes the trigger log file.
func CloseLogger() error {
	if loggerCloseFunc != nil {
		return loggerCloseFunc()
	}
	return nil
}
