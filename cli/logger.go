package cli

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// LoggerOption configures a console logger.
type LoggerOption func(*logrus.Logger)

// WithOutput directs log output to w.
func WithOutput(w io.Writer) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetOutput(w)
	}
}

// WithLevel sets the minimum level.
func WithLevel(level logrus.Level) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetLevel(level)
	}
}

// WithFormatter sets the formatter.
func WithFormatter(formatter logrus.Formatter) LoggerOption {
	return func(l *logrus.Logger) {
		l.SetFormatter(formatter)
	}
}

// NewLogger builds a plain logger for command output, separate from the
// component loggers in the logging package. Defaults to stdout at info.
func NewLogger(opts ...LoggerOption) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	for _, opt := range opts {
		opt(logger)
	}

	return logger
}
