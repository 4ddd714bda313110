// Package logs provides the EventLog implementations used across mgoquery.
package logs

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

//==============================================================================

// Logger implements mgoquery.EventLog on top of logrus. Every entry carries
// the context and func name as fields.
type Logger struct {
	*logrus.Logger
}

// New returns a Logger writing text entries to w at the giving level. An
// unknown level falls back to info.
func New(w io.Writer, level string) *Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	return &Logger{Logger: l}
}

// Std returns a Logger writing to stderr at info level.
func Std() *Logger {
	return New(os.Stderr, "info")
}

// Log records an event for the giving context.
func (l *Logger) Log(context interface{}, name string, message string, data ...interface{}) {
	l.WithFields(logrus.Fields{
		"context": fmt.Sprint(context),
		"func":    name,
	}).Infof(message, data...)
}

// Error records a failure for the giving context.
func (l *Logger) Error(context interface{}, name string, err error, message string, data ...interface{}) {
	l.WithFields(logrus.Fields{
		"context": fmt.Sprint(context),
		"func":    name,
	}).WithError(err).Errorf(message, data...)
}

//==============================================================================

// Discard drops every event.
var Discard discard

type discard struct{}

func (discard) Log(context interface{}, name string, message string, data ...interface{}) {}

func (discard) Error(context interface{}, name string, err error, message string, data ...interface{}) {
}

//==============================================================================

// MgoLogger routes the mgo driver log into logrus at debug level. Install it
// with mgo.SetLogger.
type MgoLogger struct {
	Entry *logrus.Entry
}

// NewMgoLogger returns an MgoLogger for the giving logger.
func NewMgoLogger(l *logrus.Logger) MgoLogger {
	return MgoLogger{Entry: l.WithField("func", "mgo")}
}

// Output implements the mgo logger contract.
func (m MgoLogger) Output(calldepth int, s string) error {
	m.Entry.Debug(strings.TrimSpace(s))
	return nil
}
