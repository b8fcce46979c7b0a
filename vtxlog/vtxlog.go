// Package vtxlog formats every diagnostic this loader/hypervisor pair emits
// as "[LEVEL] scope | message", over either the guest serial console or
// os.Stderr when no console is attached yet.
package vtxlog

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Level selects which vtxlog calls actually reach the sink.
type Level = logrus.Level

const (
	LevelDebug = logrus.DebugLevel
	LevelInfo  = logrus.InfoLevel
	LevelWarn  = logrus.WarnLevel
	LevelError = logrus.ErrorLevel
)

// Logger wraps a logrus.Logger carrying a fixed scope (the package or
// component name) so call sites never repeat it.
type Logger struct {
	scope string
	entry *logrus.Entry
}

type scopeFormatter struct{}

func (scopeFormatter) Format(e *logrus.Entry) ([]byte, error) {
	scope, _ := e.Data["scope"].(string)

	line := "[" + levelTag(e.Level) + "] " + scope + " | " + e.Message + "\n"

	return []byte(line), nil
}

func levelTag(l logrus.Level) string {
	switch l {
	case logrus.DebugLevel:
		return "DEBUG"
	case logrus.InfoLevel:
		return "INFO"
	case logrus.WarnLevel:
		return "WARN"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		return "ERR"
	default:
		return "INFO"
	}
}

// New builds a Logger writing to w (os.Stderr until a serial console is
// wired in) at the given scope, filtering below level.
func New(w io.Writer, scope string, level Level) *Logger {
	base := logrus.New()
	base.SetOutput(w)
	base.SetLevel(level)
	base.SetFormatter(scopeFormatter{})

	return &Logger{scope: scope, entry: base.WithField("scope", scope)}
}

// Default is a ready-to-use Logger over os.Stderr at info level, for
// packages constructed before a console is available.
func Default(scope string) *Logger {
	return New(os.Stderr, scope, LevelInfo)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

// WithScope returns a Logger sharing the same sink but narrowed to a
// sub-scope, e.g. "vcpu.dispatch" under "vcpu".
func (l *Logger) WithScope(sub string) *Logger {
	full := l.scope + "." + sub

	return &Logger{scope: full, entry: l.entry.Logger.WithField("scope", full)}
}
