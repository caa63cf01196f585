package config

import (
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const loggerPrefix = "LOGGER"

// NewLoggerConfig returns a production config without sampling. LOGGER_* env vars override
// its fields, e.g. LOGGER_LEVEL=debug or LOGGER_ENCODING=console.
func NewLoggerConfig() (*zap.Config, error) {
	cfg := zap.NewProductionConfig()
	cfg.Sampling = nil
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	if err := envconfig.Process(loggerPrefix, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
