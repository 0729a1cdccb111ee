package policyengine

import "fmt"

// RejectError reports that an expression uses a construct outside the
// sandbox grammar. It is raised by the parser, never by executing the
// offending construct.
type RejectError struct {
	Expr string
	Pos  int
	Msg  string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("expression rejected at offset %d: %s", e.Pos, e.Msg)
}

// LookupError reports an attribute reference that is absent from the
// evaluation environment. The decision engine treats it as "rule does
// not match" rather than a failure.
type LookupError struct {
	Namespace string
	Field     string
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("attribute %s.%s not present in environment", e.Namespace, e.Field)
}

// EvalError reports a runtime evaluation fault inside the sandbox, such
// as a type mismatch or division by zero. Like LookupError it is caught
// at the decision call site and treated as non-match.
type EvalError struct {
	Msg string
}

func (e *EvalError) Error() string {
	return "evaluation error: " + e.Msg
}

// ConfigError reports a malformed configuration document or mapping
// pattern. It fails the load operation; it is never produced per-user.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %v", e.Msg, e.Err)
	}
	return "config: " + e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }
