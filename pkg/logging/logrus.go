package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

const contextField = "Context"

// Logrus builds component loggers that share one level and one output.
type Logrus struct {
	level  string
	output io.Writer
}

// NewLogrus creates a new logrus instance
func NewLogrus(level string, output io.Writer) *Logrus {
	return &Logrus{level: level, output: output}
}

// Get returns a logger tagged with the component name. Unknown levels fall back to info.
func (l *Logrus) Get(context string) *logrus.Entry {
	log := logrus.New()
	level, err := logrus.ParseLevel(l.level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(l.output)

	return log.WithFields(logrus.Fields{
		contextField: context,
	})
}

// Discard returns a logger that writes nowhere, for wiring components in tests.
func Discard() *logrus.Entry {
	return NewLogrus("panic", io.Discard).Get("discard")
}
