// Package logging builds the zap logger shared by every binary.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/imrishuroy/scrapcast-tweetflow/internal/config"
)

// New returns a zap logger for the given config. "console" selects the
// human-readable development encoder; anything else logs JSON.
func New(c config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	var zc zap.Config
	if c.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
		zc.EncoderConfig.TimeKey = "time"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

// Must is New for main packages: it falls back to a production logger when the
// configured one cannot be built, so start-up errors still get logged.
func Must(c config.LoggingConfig) *zap.Logger {
	logger, err := New(c)
	if err != nil {
		logger = zap.Must(zap.NewProduction())
		logger.Warn("falling back to default logger", zap.Error(err))
	}
	return logger
}
