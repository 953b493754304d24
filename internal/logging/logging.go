package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps logrus with rotated file output plus stdout.
type Logger struct {
	*logrus.Logger
}

// New creates a Logger writing to dir/escalation.log (rotated) and stdout.
func New(dir, level string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir failed: %w", err)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "escalation.log"),
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}

	l := logrus.New()
	l.SetOutput(io.MultiWriter(os.Stdout, rotator))
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)

	return &Logger{Logger: l}, nil
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}
