package monitoring

import (
	"fmt"
	"log"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// NewZapLogger builds a JSON production logger at the named level
// ("debug", "info", "warn", "error"). Unknown levels fall back to info.
func NewZapLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	switch strings.ToLower(level) {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	return cfg.Build()
}

// ZapLogf adapts a zap logger to the Logf signature. Messages keep their
// bracketed component prefix ("[eventlog] ...") which is lifted into a
// "component" field. Messages reporting a failure are logged at Warn so they
// survive -log-level=warn; everything else is Info.
func ZapLogf(l *zap.Logger) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		msg := fmt.Sprintf(format, v...)
		var fields []zap.Field
		if strings.HasPrefix(msg, "[") {
			if end := strings.Index(msg, "]"); end > 1 {
				fields = append(fields, zap.String("component", msg[1:end]))
				msg = strings.TrimSpace(msg[end+1:])
			}
		}
		if ce := l.Check(levelFor(msg), msg); ce != nil {
			ce.Write(fields...)
		}
	}
}

// failureWords mark a diagnostic as a warning.
var failureWords = []string{"failed", "error", "unable", "cannot", "malformed", "invalid"}

func levelFor(msg string) zapcore.Level {
	lower := strings.ToLower(msg)
	for _, w := range failureWords {
		if strings.Contains(lower, w) {
			return zapcore.WarnLevel
		}
	}
	return zapcore.InfoLevel
}
