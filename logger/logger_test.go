package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed() (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return &Logger{zap.New(core).Sugar()}, logs
}

func TestWithContext_AddsRequestID(t *testing.T) {
	// GIVEN: A context tagged with a request id
	log, logs := observed()
	ctx := WithRequestID(context.Background(), "req-42")

	// WHEN: Logging through it
	log.WithContext(ctx).WithComponent("sales").Infow("saved", "rows", 3)

	// THEN: The line carries the id and the component
	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "sales", fields["component"])
	assert.EqualValues(t, 3, fields["rows"])
}

func TestWithContext_NoRequestID(t *testing.T) {
	// GIVEN: A plain context
	log, logs := observed()

	// WHEN: Logging through it
	log.WithContext(context.Background()).Warnw("disk low")

	// THEN: No request_id field is added
	require.Equal(t, 1, logs.Len())
	_, ok := logs.All()[0].ContextMap()["request_id"]
	assert.False(t, ok)
}

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		debug bool
	}{
		{"debug", true},
		{"info", false},
		{"bogus", false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log, err := New(Config{Level: tt.level, OutputPaths: []string{"stderr"}})
			require.NoError(t, err)
			assert.Equal(t, tt.debug, log.Desugar().Core().Enabled(zapcore.DebugLevel))
		})
	}
}
