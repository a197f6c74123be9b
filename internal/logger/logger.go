package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/andresmejia3/suri/internal/config"

	log "github.com/sirupsen/logrus"
)

// Init configures the global logrus logger. Logs always go to stderr so that
// stdout carries nothing but the service responses. A log file that cannot be
// opened is an error.
func Init(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', defaulting to 'info': %v", cfg.Level, err)
		level = log.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	writers := []io.Writer{os.Stderr}

	if cfg.File != "" {
		logDir := filepath.Dir(cfg.File)
		if err := os.MkdirAll(logDir, 0750); err != nil {
			return fmt.Errorf("failed to create log directory '%s': %w", logDir, err)
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0660)
		if err != nil {
			return fmt.Errorf("failed to open log file '%s': %w", cfg.File, err)
		}
		writers = append(writers, file)
	}

	log.SetOutput(io.MultiWriter(writers...))
	log.Debugf("Logger initialized at level %s", level)
	return nil
}
