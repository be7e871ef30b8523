package dlnaviewd

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig describes daemon logging options.
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// NewLogger creates the daemon's structured logger.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	zapConfig := zap.NewProductionConfig()
	if strings.ToLower(cfg.Format) == "console" {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		zapConfig.OutputPaths = []string{"stderr"}
	case "stdout":
		zapConfig.OutputPaths = []string{"stdout"}
	default:
		zapConfig.OutputPaths = []string{cfg.Output}
	}

	return zapConfig.Build()
}
