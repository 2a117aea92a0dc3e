package notify

import (
	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// waLogger routes whatsmeow logs to logrus.
type waLogger struct {
	base   *logrus.Logger
	module string
}

// NewWALogger returns a whatsmeow logger backed by logrus.
func NewWALogger(base *logrus.Logger, module string) waLog.Logger {
	return &waLogger{base: base, module: module}
}

func (w *waLogger) entry() *logrus.Entry {
	e := logrus.NewEntry(w.base).WithField("component", "whatsapp")
	if w.module != "" {
		e = e.WithField("module", w.module)
	}
	return e
}

func (w *waLogger) Errorf(msg string, args ...interface{}) { w.entry().Errorf(msg, args...) }
func (w *waLogger) Warnf(msg string, args ...interface{})  { w.entry().Warnf(msg, args...) }
func (w *waLogger) Infof(msg string, args ...interface{})  { w.entry().Infof(msg, args...) }
func (w *waLogger) Debugf(msg string, args ...interface{}) { w.entry().Debugf(msg, args...) }

func (w *waLogger) Sub(module string) waLog.Logger {
	if w.module == "" {
		return &waLogger{base: w.base, module: module}
	}
	return &waLogger{base: w.base, module: w.module + "/" + module}
}
