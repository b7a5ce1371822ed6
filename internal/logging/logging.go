// Package logging builds the process zap logger from the configured level and format.
package logging

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	ErrUnsupportedLevel  = errors.New("unsupported log level")
	ErrUnsupportedFormat = errors.New("unsupported log format")
)

// Level enumerates supported logging granularities.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Format enumerates supported logger output encodings.
type Format string

const (
	FormatStructured Format = "structured"
	FormatConsole    Format = "console"
)

var levels = map[Level]zapcore.Level{
	LevelDebug: zapcore.DebugLevel,
	LevelInfo:  zapcore.InfoLevel,
	LevelWarn:  zapcore.WarnLevel,
	LevelError: zapcore.ErrorLevel,
}

var encodings = map[Format]string{
	FormatStructured: "json",
	FormatConsole:    "console",
}

// Factory builds zap.Logger instances with consistent configuration.
type Factory struct {
	outputPaths []string
}

// NewFactory returns a factory writing to stderr.
func NewFactory() *Factory {
	return &Factory{outputPaths: []string{"stderr"}}
}

// WithOutputPaths returns a copy of f writing to the given zap sinks.
func (f *Factory) WithOutputPaths(paths ...string) *Factory {
	return &Factory{outputPaths: append([]string(nil), paths...)}
}

// ParseLevel accepts level names case-insensitively.
func ParseLevel(s string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := levels[level]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedLevel, s)
	}
	return level, nil
}

// ParseFormat accepts format names case-insensitively.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := encodings[format]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, s)
	}
	return format, nil
}

// CreateLogger produces a zap.Logger honoring the requested level and format.
func (f *Factory) CreateLogger(level Level, format Format) (*zap.Logger, error) {
	zapLevel, ok := levels[level]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLevel, level)
	}
	encoding, ok := encodings[format]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.Encoding = encoding
	config.OutputPaths = f.outputPaths
	config.ErrorOutputPaths = []string{"stderr"}
	if format == FormatConsole {
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
