package utils

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level         string
	Format        string
	Output        zapcore.WriteSyncer
	IncludeCaller bool
}

// DefaultLoggerConfig returns default configuration
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:         "INFO",
		Format:        FormatText,
		Output:        zapcore.Lock(os.Stdout),
		IncludeCaller: true,
	}
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) (zapcore.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel, nil
	case "INFO":
		return zapcore.InfoLevel, nil
	case "WARN", "WARNING":
		return zapcore.WarnLevel, nil
	case "ERROR":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// NewLogger creates a zap logger from the configuration
func NewLogger(config *LoggerConfig) (*zap.Logger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}

	level, err := ParseLogLevel(config.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	switch strings.ToLower(config.Format) {
	case "", FormatText, "console":
		encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case FormatJSON:
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format: %s", config.Format)
	}

	output := config.Output
	if output == nil {
		output = zapcore.Lock(os.Stdout)
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if config.IncludeCaller {
		opts = append(opts, zap.AddCaller())
	}

	return zap.New(zapcore.NewCore(encoder, output, zap.NewAtomicLevelAt(level)), opts...), nil
}

// FormatBytes formats bytes as human-readable string
func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
