package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/bcnmy/relayer-node/internal/config"
)

func TestNewLoggerConfig(t *testing.T) {
	cfg, err := config.NewLoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, cfg.Level.Level())
	assert.Nil(t, cfg.Sampling)

	t.Setenv("LOGGER_LEVEL", "debug")
	t.Setenv("LOGGER_ENCODING", "console")

	cfg, err = config.NewLoggerConfig()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
	assert.Equal(t, "console", cfg.Encoding)
}
