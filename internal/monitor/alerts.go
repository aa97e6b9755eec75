package monitor

import "go.uber.org/zap"

// AlertSink interface for pluggable alert delivery.
type AlertSink interface {
	Send(message string) error
}

// LogSink delivers alerts as warn-level log lines.
type LogSink struct {
	Logger *zap.Logger
}

// Send implements AlertSink.
func (s LogSink) Send(message string) error {
	s.Logger.Warn("alert", zap.String("message", message))
	return nil
}
