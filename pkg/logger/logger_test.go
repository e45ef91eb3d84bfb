package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"WARN", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"chatty", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewHonoursLevelAndFormat(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		log, err := New("error", format)
		require.NoError(t, err)
		assert.False(t, log.Core().Enabled(zapcore.WarnLevel), format)
		assert.True(t, log.Core().Enabled(zapcore.ErrorLevel), format)
	}
}

func TestWithContextTagsEntries(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	log := Logger{Logger: zap.New(core)}

	log.WithContext("corr-1", 42, "admin").Info("request failed")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "corr-1", fields["correlation_id"])
	assert.Equal(t, int64(42), fields["user_id"])
	assert.Equal(t, "admin", fields["role"])
}
