// Package cerrors defines the error taxonomy shared by every CAPIO-CL
// component: InvalidRule, ParseError, SerializeError, and MonitorFailure.
package cerrors

import "fmt"

// Kind tags an Error with which part of the taxonomy it belongs to.
type Kind string

const (
	// KindInvalidRule marks a commit_rule/fire_rule string outside the
	// allowed set.
	KindInvalidRule Kind = "InvalidRule"
	// KindParseError marks a malformed or schema-invalid configuration
	// document.
	KindParseError Kind = "ParseError"
	// KindSerializeError marks a failure while writing an engine back to
	// a configuration document.
	KindSerializeError Kind = "SerializeError"
	// KindMonitorFailure marks a commit-backend failure (socket setup,
	// unknown wire command in strict mode).
	KindMonitorFailure Kind = "MonitorFailure"
)

// Error is the single concrete error type for all four taxonomy kinds.
// Component/Operation name where the error originated, Cause carries any
// wrapped underlying error.
type Error struct {
	Kind      Kind
	Component string
	Operation string
	Message   string
	Cause     error
}

// New builds an Error with no wrapped cause.
func New(kind Kind, component, operation, message string) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Message: message}
}

// Wrap builds an Error wrapping cause.
func Wrap(kind Kind, component, operation, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Operation: operation, Message: message, Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Component, e.Operation, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Component, e.Operation, e.Kind, e.Message)
}

// Unwrap allows errors.Is/errors.As to see through to the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Kind, so callers
// can write errors.Is(err, cerrors.New(cerrors.KindParseError, "", "", "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// InvalidRule builds a KindInvalidRule error.
func InvalidRule(component, operation, message string) *Error {
	return New(KindInvalidRule, component, operation, message)
}

// ParseError builds a KindParseError error.
func ParseError(component, operation, message string) *Error {
	return New(KindParseError, component, operation, message)
}

// ParseErrorWrap builds a KindParseError error wrapping cause.
func ParseErrorWrap(component, operation, message string, cause error) *Error {
	return Wrap(KindParseError, component, operation, message, cause)
}

// SerializeError builds a KindSerializeError error.
func SerializeError(component, operation, message string) *Error {
	return New(KindSerializeError, component, operation, message)
}

// SerializeErrorWrap builds a KindSerializeError error wrapping cause.
func SerializeErrorWrap(component, operation, message string, cause error) *Error {
	return Wrap(KindSerializeError, component, operation, message, cause)
}

// MonitorFailure builds a KindMonitorFailure error.
func MonitorFailure(component, operation, message string) *Error {
	return New(KindMonitorFailure, component, operation, message)
}

// MonitorFailureWrap builds a KindMonitorFailure error wrapping cause.
func MonitorFailureWrap(component, operation, message string, cause error) *Error {
	return Wrap(KindMonitorFailure, component, operation, message, cause)
}
