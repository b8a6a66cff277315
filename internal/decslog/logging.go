// Package decslog provides centralized logging for the decs coordination plane.
// Error-level entries are routed to stderr, everything else to stdout, so
// container orchestrators can treat the two streams differently.
package decslog

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stdout or stderr based on level.
type OutputSplitter struct{}

func (OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the package-wide logrus instance used by every service.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(OutputSplitter{})
}

// Configure applies the service's LOG_LEVEL/LOG_FORMAT knobs to Logger. An
// unrecognized level falls back to info; format "json" selects
// logrus.JSONFormatter, anything else a plain TextFormatter.
func Configure(level, format string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	Logger.SetLevel(parsed)

	if format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
