package logging

import (
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

// whatsmeowLogger routes whatsmeow's printf-style logs into zap.
type whatsmeowLogger struct {
	s *zap.SugaredLogger
}

// WhatsmeowLogger adapts l to whatsmeow's logger interface. Each Sub module
// becomes a named child logger.
func WhatsmeowLogger(l *zap.Logger) waLog.Logger {
	return &whatsmeowLogger{s: l.Sugar()}
}

func (w *whatsmeowLogger) Warnf(msg string, args ...any)  { w.s.Warnf(msg, args...) }
func (w *whatsmeowLogger) Errorf(msg string, args ...any) { w.s.Errorf(msg, args...) }
func (w *whatsmeowLogger) Infof(msg string, args ...any)  { w.s.Infof(msg, args...) }
func (w *whatsmeowLogger) Debugf(msg string, args ...any) { w.s.Debugf(msg, args...) }

func (w *whatsmeowLogger) Sub(module string) waLog.Logger {
	return &whatsmeowLogger{s: w.s.Named(module)}
}
