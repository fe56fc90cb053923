package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects level, format and an optional rotated log file.
type Options struct {
	Level  string
	Format string
	File   string
}

// Setup configures logger. When File is set, output goes to a rotated file
// as well as stderr. The returned closer releases the file.
func Setup(logger *logrus.Logger, opts Options) (io.Closer, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	level := logrus.InfoLevel
	if strings.TrimSpace(opts.Level) != "" {
		parsed, err := logrus.ParseLevel(opts.Level)
		if err != nil {
			return nil, fmt.Errorf("logging: %w", err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	if opts.File == "" {
		logger.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}
	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    50,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, file))
	return file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
