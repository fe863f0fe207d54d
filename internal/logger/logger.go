package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the service logger. Entries go to stdout and to the file
// at logFilePath; an empty path logs to stdout only.
func NewLogger(logFilePath string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout"}
	if logFilePath != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFilePath)
	}
	cfg.Sampling = nil

	return cfg.Build()
}
