// Package log provides the logging facade used throughout the RADIUS
// library. The core never writes to stdout directly; every drop or error
// path accepts an injected Logger so embedders can redirect, sample, or
// silence it.
package log

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Logger is the logging interface consumed by pkg/client and pkg/server.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
}

// DefaultLogger is a Logger backed by logrus.
type DefaultLogger struct {
	logger *logrus.Logger
}

// NewDefaultLogger returns a logrus-backed Logger at Info level.
func NewDefaultLogger() *DefaultLogger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.InfoLevel)
	return &DefaultLogger{logger: logger}
}

// NewLoggerWithLevel returns a logrus-backed Logger at the named level,
// falling back to Info on an unparseable level string.
func NewLoggerWithLevel(level string) *DefaultLogger {
	l := NewDefaultLogger()
	if lvl, err := logrus.ParseLevel(level); err == nil {
		l.logger.SetLevel(lvl)
	}
	return l
}

// Discard returns a Logger that drops everything. Useful in tests that
// want to exercise a drop path without printing.
func Discard() *DefaultLogger {
	l := NewDefaultLogger()
	l.logger.SetOutput(io.Discard)
	return l
}

func (l *DefaultLogger) Debug(args ...interface{})                 { l.logger.Debug(args...) }
func (l *DefaultLogger) Debugf(format string, args ...interface{}) { l.logger.Debugf(format, args...) }
func (l *DefaultLogger) Info(args ...interface{})                  { l.logger.Info(args...) }
func (l *DefaultLogger) Infof(format string, args ...interface{})  { l.logger.Infof(format, args...) }
func (l *DefaultLogger) Warn(args ...interface{})                  { l.logger.Warn(args...) }
func (l *DefaultLogger) Warnf(format string, args ...interface{})  { l.logger.Warnf(format, args...) }
func (l *DefaultLogger) Error(args ...interface{})                 { l.logger.Error(args...) }
func (l *DefaultLogger) Errorf(format string, args ...interface{}) { l.logger.Errorf(format, args...) }

// GetLogrus exposes the underlying logrus logger for callers that need
// advanced configuration (hooks, structured fields) beyond the Logger
// interface.
func (l *DefaultLogger) GetLogrus() *logrus.Logger {
	return l.logger
}
