// Package logging builds the logr.Logger used across whoislookup
package logging

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	uberzap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Verbosity levels passed to logr's V()
const (
	DEFAULT = 0
	DEBUG   = 1
)

// New creates a zap-backed logger. level is one of debug, info, warn or
// error; format is console or json.
func New(level, format string) (logr.Logger, error) {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}

	var cfg uberzap.Config
	switch strings.ToLower(format) {
	case "json":
		cfg = uberzap.NewProductionConfig()
	case "console", "":
		cfg = uberzap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return logr.Discard(), fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = uberzap.NewAtomicLevelAt(zapLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true

	zapLog, err := cfg.Build(uberzap.AddCaller())
	if err != nil {
		return logr.Discard(), fmt.Errorf("building logger: %w", err)
	}
	return zapr.NewLogger(zapLog), nil
}

// parseLevel maps a level name to zap. logr's V(n) is zap level -n, so
// debug enables V(DEBUG).
func parseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.Level(-DEBUG), nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewTestLogger creates a development logger that logs everything
func NewTestLogger() logr.Logger {
	zapLog, err := uberzap.NewDevelopment()
	if err != nil {
		return logr.Discard()
	}
	return zapr.NewLogger(zapLog)
}
