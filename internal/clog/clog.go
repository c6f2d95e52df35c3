// Package clog is the logging façade used by every other package. It
// keeps the teacher's LogProvider/Clog indirection (a pluggable provider
// behind an atomic enable toggle, so tests can inject a stub) but backs
// the default provider with logrus and lumberjack instead of the standard
// log package.
package clog

import (
	"io"
	"os"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogProvider is the minimal logging surface Clog delegates to.
type LogProvider interface {
	Critical(format string, v ...interface{})
	Error(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Debug(format string, v ...interface{})
}

// Clog wraps a LogProvider behind an atomic enable/disable toggle.
type Clog struct {
	provider LogProvider
	has      uint32
}

// NewLogger returns a Clog backed by the default logrus provider, enabled.
func NewLogger() Clog {
	c := Clog{provider: newDefaultLogger()}
	c.LogMode(true)
	return c
}

// LogMode enables or disables log output.
func (c *Clog) LogMode(enable bool) {
	if enable {
		atomic.StoreUint32(&c.has, 1)
	} else {
		atomic.StoreUint32(&c.has, 0)
	}
}

// SetLogProvider swaps the underlying provider.
func (c *Clog) SetLogProvider(p LogProvider) {
	if p != nil {
		c.provider = p
	}
}

// Critical logs a CRITICAL level message.
func (c Clog) Critical(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Critical(format, v...)
	}
}

// Error logs an ERROR level message.
func (c Clog) Error(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Error(format, v...)
	}
}

// Warn logs a WARN level message.
func (c Clog) Warn(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Warn(format, v...)
	}
}

// Debug logs a DEBUG level message.
func (c Clog) Debug(format string, v ...interface{}) {
	if atomic.LoadUint32(&c.has) == 1 {
		c.provider.Debug(format, v...)
	}
}

// logrusLogger is the default LogProvider, backed by a dedicated logrus
// instance so its output/formatter/level are independent of any library
// code that might also use the global logrus logger.
type logrusLogger struct {
	*logrus.Logger
}

var _ LogProvider = (*logrusLogger)(nil)

func newDefaultLogger() *logrusLogger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &logrusLogger{l}
}

// Setup reconfigures the default logger's level and output according to
// the ambient static config: stdout, a rotating file via lumberjack, or
// both.
func Setup(l *logrusLogger, level string, toStdout bool, dir string, maxSizeMB, maxBackups, maxAgeDays int, compress bool) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	l.SetLevel(parsed)

	var writers []io.Writer
	if toStdout || dir == "" {
		writers = append(writers, os.Stdout)
	}
	if dir != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   dir + "/medusad.log",
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
			LocalTime:  true,
		})
	}
	l.SetOutput(io.MultiWriter(writers...))
	return nil
}

func (l *logrusLogger) Critical(format string, v ...interface{}) { l.Errorf("[C]: "+format, v...) }
func (l *logrusLogger) Error(format string, v ...interface{})    { l.Errorf("[E]: "+format, v...) }
func (l *logrusLogger) Warn(format string, v ...interface{})     { l.Warnf("[W]: "+format, v...) }
func (l *logrusLogger) Debug(format string, v ...interface{})    { l.Debugf("[D]: "+format, v...) }

// DefaultProvider exposes the concrete default provider so cmd/medusad can
// call Setup on it after constructing a Clog with NewLogger.
func DefaultProvider(c Clog) (*logrusLogger, bool) {
	l, ok := c.provider.(*logrusLogger)
	return l, ok
}
