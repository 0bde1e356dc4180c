package logger

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseLevel maps a LOGGER_LEVEL name onto a logrus level. "verbose" is the
// most detailed level and "log" is an alias of "info".
func ParseLevel(name string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "verbose":
		return logrus.TraceLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "info", "log", "":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
}

// LevelsFrom returns every level at or above minimum severity.
func LevelsFrom(minimum logrus.Level) []logrus.Level {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))

	for _, l := range logrus.AllLevels {
		if l <= minimum {
			levels = append(levels, l)
		}
	}

	return levels
}

// errorLevels are the levels routed to the error-only file.
var errorLevels = []logrus.Level{
	logrus.PanicLevel,
	logrus.FatalLevel,
	logrus.ErrorLevel,
}
