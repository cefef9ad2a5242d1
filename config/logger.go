package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger. format is "json" (default) or "text".
func NewLogger(cfg LogConfig) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger, nil
}
