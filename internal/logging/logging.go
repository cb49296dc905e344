// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/giftar/giftpin/internal/config"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup applies level, format and output to the standard logrus logger.
// When cfg.File is set, output is duplicated into a rotated file.
// The returned closer releases the file; it is a no-op without a file.
func Setup(cfg config.LogConfig) (io.Closer, error) {
	level := log.InfoLevel
	if raw := strings.TrimSpace(cfg.Level); raw != "" {
		parsed, errParse := log.ParseLevel(raw)
		if errParse != nil {
			return nil, fmt.Errorf("logging: %w", errParse)
		}
		level = parsed
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	file := strings.TrimSpace(cfg.File)
	if file == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}, nil
	}
	if errMkdir := os.MkdirAll(filepath.Dir(file), 0o755); errMkdir != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", errMkdir)
	}
	rotator := &lumberjack.Logger{
		Filename:   file,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotator))
	return rotator, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
