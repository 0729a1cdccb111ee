package logger

// Logger is the structured logging surface the engine writes to.
// Keyvals are alternating key/value pairs.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// TraceIDFunc produces a correlation ID for decision records. It must
// be cheap and safe for concurrent calls.
type TraceIDFunc func() string
