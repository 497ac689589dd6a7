package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/memipc/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantErr   bool
		wantLevel zapcore.Level
	}{
		{name: "default", cfg: DefaultConfig(), wantLevel: zapcore.InfoLevel},
		{name: "development", cfg: DevelopmentConfig(), wantLevel: zapcore.DebugLevel},
		{name: "warn", cfg: Config{Level: "warn"}, wantLevel: zapcore.WarnLevel},
		{name: "bad level", cfg: Config{Level: "loud"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.wantLevel))
			if tt.wantLevel > zapcore.DebugLevel {
				assert.False(t, logger.Core().Enabled(tt.wantLevel-1))
			}
		})
	}
}

func TestFromConfigAddsLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memipc.log")

	cfg := FromConfig(config.LogConfig{Level: "info", File: path})
	assert.Equal(t, []string{"stdout", path}, cfg.OutputPaths)

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Info("queue opened", zap.String("queue", "/tables"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"queue opened"`)
	assert.Contains(t, string(data), `"queue":"/tables"`)
}

func TestFallbacks(t *testing.T) {
	assert.NotNil(t, NewDefault())
	assert.NotNil(t, NewDevelopment())

	nop := NewNop().Named("table").With(zap.String("queue", "/q"))
	nop.Info("discarded")
}

func TestFromConfigRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")

	cfg := FromConfig(config.LogConfig{
		Level:      "info",
		File:       path,
		Rotate:     true,
		MaxSizeMB:  1,
		MaxBackups: 2,
		MaxAgeDays: 1,
	})
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
	require.NotNil(t, cfg.Rotation)
	assert.Equal(t, path, cfg.Rotation.Filename)

	logger, err := New(cfg)
	require.NoError(t, err)
	logger.Debug("filtered")
	logger.Info("record applied", zap.String("table", "users"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"record applied"`)
	assert.NotContains(t, string(data), "filtered")
}
