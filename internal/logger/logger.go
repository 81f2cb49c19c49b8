package logger

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger that writes to the console and to a run-scoped
// log file named from the start timestamp and the transfer endpoints, e.g.
// 2026-08-30_14-02-11_photos_to_archive.log. The file path is returned so
// the caller can report where the transfer log lives.
func New(level, container, bucket string) (*zap.Logger, string, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, "", fmt.Errorf("invalid log level %q: %w", level, err)
	}

	logFile := fmt.Sprintf("%s_%s_to_%s.log",
		time.Now().Format("2006-01-02_15-04-05"), container, bucket)

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stdout", logFile}
	cfg.ErrorOutputPaths = []string{"stderr"}

	log, err := cfg.Build()
	if err != nil {
		return nil, "", fmt.Errorf("failed to build logger: %w", err)
	}

	return log, logFile, nil
}
