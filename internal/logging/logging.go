package logging

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	logg *logrus.Logger
	once sync.Once
)

// GetLogger returns the process-wide logger.
func GetLogger() *logrus.Logger {
	once.Do(func() {
		logg = logrus.New()
		logg.SetFormatter(&logrus.JSONFormatter{})
		logg.SetLevel(logrus.InfoLevel)
		logg.SetOutput(os.Stdout)
	})
	return logg
}

// SetLevel parses level ("debug", "info", "warn", ...) and applies it to the
// process-wide logger. Unknown levels leave the current level untouched.
func SetLevel(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		GetLogger().WithField("level", level).Warn("unknown log level, keeping current level")
		return
	}
	GetLogger().SetLevel(parsed)
}

// LogError writes a single structured error entry.
func LogError(logger *logrus.Logger, moduleName string, funcName string, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	msg := context
	if err != nil {
		msg = err.Error()
	}
	logger.WithFields(fields).Error(msg)
}
