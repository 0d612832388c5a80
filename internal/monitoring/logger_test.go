package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op that must not reach the previous logger
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}

func TestZapLogf(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logf := ZapLogf(zap.New(core))

	logf("[eventlog] wrote %d records", 3)
	logf("plain message %s", "here")

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "wrote 3 records", entries[0].Message)
	assert.Equal(t, "eventlog", entries[0].ContextMap()["component"])

	assert.Equal(t, "plain message here", entries[1].Message)
	assert.Empty(t, entries[1].ContextMap())
}

func TestNewZapLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus"} {
		l, err := NewZapLogger(level)
		require.NoError(t, err, level)
		require.NotNil(t, l)
	}

	l, err := NewZapLogger("warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.WarnLevel))
}

func TestZapLogf_FailuresSurviveWarnLevel(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logf := ZapLogf(zap.New(core))

	logf("[pipeline] stop requested")
	logf("[pipeline] frame %d: detection failed: %v", 7, "timeout")
	logf("[notify] publish frame %d to %s failed: %v", 3, "shelf_alerts", "connection refused")
	logf("[replay] line %d malformed (%v); replaying as empty frame", 2, "bad json")

	entries := logs.All()
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, zapcore.WarnLevel, e.Level)
	}
	assert.Equal(t, "frame 7: detection failed: timeout", entries[0].Message)
	assert.Equal(t, "pipeline", entries[0].ContextMap()["component"])
	assert.Equal(t, "notify", entries[1].ContextMap()["component"])
}

func TestZapLogf_InfoByDefault(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logf := ZapLogf(zap.New(core))

	logf("[shelf-monitor] session %s started", "abc")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
}
