package logging

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a zap-backed logger configured with the given level string,
// and a flush func to call before the process exits.
// Timestamps are omitted since CI runners already prefix every line.
func New(level string) (logr.Logger, func(), error) {
	return newLogger(level, "stdout")
}

func newLogger(level, outputPath string) (logr.Logger, func(), error) {
	zapLevel, err := ParseLevel(level)
	if err != nil {
		return logr.Logger{}, nil, err
	}

	encoder := zap.NewDevelopmentEncoderConfig()
	encoder.TimeKey = ""
	encoder.CallerKey = ""
	encoder.EncodeLevel = zapcore.CapitalLevelEncoder

	cfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(zapLevel),
		Encoding:          "console",
		EncoderConfig:     encoder,
		OutputPaths:       []string{outputPath},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: true,
	}
	z, err := cfg.Build()
	if err != nil {
		return logr.Logger{}, nil, fmt.Errorf("building logger: %w", err)
	}
	// Sync on a terminal stdout can return EINVAL.
	flush := func() { _ = z.Sync() }
	return zapr.NewLogger(z), flush, nil
}

// ParseLevel maps a level name to a zap level. An empty string is info.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (expected debug, info, warn, or error)", level)
	}
}
