// Package logger configures the process-wide logrus logger.
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Init sets the level and output of the standard logrus logger. An unknown
// level falls back to info. With a file name, output is appended to
// logs/<file>; otherwise it goes to stdout. Production uses the JSON
// formatter. The returned func closes the log file.
func Init(env, level, file string) (func(), error) {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		l = logrus.InfoLevel
	}
	logrus.SetLevel(l)
	if env == "prod" || env == "production" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if file == "" {
		logrus.SetOutput(os.Stdout)
		return func() {}, nil
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return nil, fmt.Errorf("log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", filepath.Base(file)), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("log file: %w", err)
	}
	logrus.SetOutput(f)
	return func() { _ = f.Close() }, nil
}
