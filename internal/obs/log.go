package obs

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide structured logger.
var Log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetLogLevel parses level and applies it, falling back to info for
// unknown values.
func SetLogLevel(logger *logrus.Logger, level string) {
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		logger.WithField("level", level).Warn("unknown log level, using info")
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
}

// UseJSON switches the logger to JSON output for log shippers.
func UseJSON(logger *logrus.Logger) {
	logger.SetFormatter(&logrus.JSONFormatter{})
}
