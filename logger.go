package davclient

import "github.com/rs/zerolog"

// ZerologLogger adapts a zerolog.Logger to the Logger contract, per
// SPEC_FULL.md §3's ambient logging stack.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger wraps log as a Logger.
func NewZerologLogger(log zerolog.Logger) *ZerologLogger {
	return &ZerologLogger{log: log}
}

// Debug logs event at debug level with fields attached, dropped entirely
// when the underlying logger is below debug level.
func (l *ZerologLogger) Debug(event string, fields map[string]any) {
	evt := l.log.Debug()
	for k, v := range fields {
		evt = evt.Interface(k, v)
	}
	evt.Msg(event)
}
