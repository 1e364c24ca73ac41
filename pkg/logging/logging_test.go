package logging

import (
	"testing"

	"github.com/1F47E/geo-region-tiles/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.Logging
		level zapcore.Level
	}{
		{"default", config.Logging{}, zapcore.InfoLevel},
		{"debug", config.Logging{Level: "debug"}, zapcore.DebugLevel},
		{"development", config.Logging{Level: "warn", Development: true}, zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.cfg)
			require.NoError(t, err)
			assert.True(t, log.Core().Enabled(tt.level))
			assert.False(t, log.Core().Enabled(tt.level-1))
		})
	}
}

func TestNewInvalidLevel(t *testing.T) {
	_, err := New(config.Logging{Level: "loud"})
	assert.Error(t, err)
}
