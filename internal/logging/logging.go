package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"taskboard/internal/config"
)

// Setup configures the standard logrus logger from cfg. The returned closer
// flushes and closes the rotating log file, if one was configured.
func Setup(cfg config.Log) (io.Closer, error) {
	return Configure(logrus.StandardLogger(), cfg, os.Stdout)
}

// Configure applies cfg to logger, writing to stdout and, when cfg.File is set,
// to a lumberjack-rotated file as well.
func Configure(logger *logrus.Logger, cfg config.Log, stdout io.Writer) (io.Closer, error) {
	if err := SetLevel(logger, cfg.Level); err != nil {
		return nil, err
	}
	switch cfg.Format {
	case "", "json":
		logger.SetFormatter(&JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	logger.SetReportCaller(cfg.ReportCaller)

	if cfg.File == "" {
		logger.SetOutput(stdout)
		return nopCloser{}, nil
	}
	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(stdout, file))
	return file, nil
}

// SetLevel parses level ("debug", "info", ...) and applies it.
func SetLevel(logger *logrus.Logger, level string) error {
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(lvl)
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
