// Package logging builds the process-wide zap logger.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects level and encoding. Empty values fall back to info/json.
type Options struct {
	Level  string // debug|info|warn|error
	Format string // json|console
}

// New creates a sugared logger writing to stdout.
func New(opts Options) (*zap.SugaredLogger, zap.AtomicLevel, error) {
	atom := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := atom.UnmarshalText([]byte(strings.ToLower(opts.Level))); err != nil {
			return nil, atom, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.StacktraceKey = "stack"
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(opts.Format) {
	case "", "json":
		enc = zapcore.NewJSONEncoder(encoderCfg)
	case "console":
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encoderCfg)
	default:
		return nil, atom, fmt.Errorf("invalid log format %q", opts.Format)
	}

	zl := zap.New(
		zapcore.NewCore(enc, zapcore.Lock(os.Stdout), atom),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.AddCaller(),
	)
	return zl.Sugar(), atom, nil
}

// Nop returns a logger that discards everything; used by tests and as a nil fallback.
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// OrNop returns log, or a no-op logger when log is nil.
func OrNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return Nop()
	}
	return log
}
