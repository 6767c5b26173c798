package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	// levelEnv selects the log level, any value logrus.ParseLevel accepts.
	levelEnv = "DISPATCH_LOG_LEVEL"
	// formatEnv selects the output format, "json" or "text".
	formatEnv = "DISPATCH_LOG_FORMAT"
)

var (
	once sync.Once
	lg   *logrus.Entry
)

// Logger returns the process-wide logger. The first call configures it from
// the DISPATCH_LOG_LEVEL and DISPATCH_LOG_FORMAT environment variables;
// unset or unparsable values fall back to warning level and text output.
func Logger() *logrus.Entry {
	once.Do(func() {
		l := logrus.New()
		l.SetOutput(os.Stderr)

		lvl := logrus.WarnLevel
		if levelStr := os.Getenv(levelEnv); levelStr != "" {
			parsed, err := logrus.ParseLevel(levelStr)
			if err == nil {
				lvl = parsed
			}
		}
		l.SetLevel(lvl)

		if os.Getenv(formatEnv) == "json" {
			l.SetFormatter(&logrus.JSONFormatter{})
		} else {
			l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		}

		lg = l.WithField("component", "dispatch")
	})

	return lg
}
