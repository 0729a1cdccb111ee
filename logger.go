package policyengine

import "github.com/mraaron360/RBAC-AND-ABAC/logger"

// Logger is the engine's structured logging surface; the logger
// subpackage carries the canonical definition and the adapters.
type Logger = logger.Logger

// TraceIDFunc generates a correlation ID for decision records.
type TraceIDFunc = logger.TraceIDFunc

// WithLogger installs a Logger on the Engine.
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithTraceIDFunc installs a custom decision-record ID generator.
func WithTraceIDFunc(f TraceIDFunc) EngineOption {
	return func(e *Engine) error {
		e.idFunc = f
		return nil
	}
}
