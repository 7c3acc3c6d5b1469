// Package logging configures the process logger.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New returns a logger writing to stdout. Unknown levels fall back to info.
func New(level, format string) *logrus.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

func NewWithWriter(w io.Writer, level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.Out = w

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			PadLevelText:  true,
		})
	}
	SetLevel(logger, level)
	return logger
}

// SetLevel applies level to logger, keeping the current level when it does not parse.
func SetLevel(logger *logrus.Logger, level string) bool {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return false
	}
	logger.SetLevel(lvl)
	return true
}
