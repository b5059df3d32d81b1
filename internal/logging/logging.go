// Package logging builds the structured loggers used by the client and
// server binaries, backed by logrus.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger writing to stderr at level with either text or
// JSON formatting. The role argument is not recorded on the returned
// logger; WithRole adds the role field to an entry.
func New(role, level, format string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}

	return l, nil
}

// WithRole returns an entry pre-populated with the role field, so every
// log line from a client or server process is taggable in aggregated logs.
func WithRole(l *logrus.Logger, role string) *logrus.Entry {
	return l.WithField("role", role)
}
