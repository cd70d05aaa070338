package models

import "errors"

var (
	ErrValidation = errors.New("validation failed")
	ErrTransport  = errors.New("transport failed")
	ErrStale      = errors.New("stale result")
)

// ValidationError is a local precondition failure. It never reaches the
// network and never mutates state.
type ValidationError struct {
	Op     string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Op + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func Invalid(op, reason string) error {
	return &ValidationError{Op: op, Reason: reason}
}

// TransportError wraps a network, server or response-contract failure of a
// backend call.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return e.Op + ": transport failed"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Err}
}

func Transport(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}

// StaleError reports a backend call that succeeded but whose result was
// discarded because the local state it was based on changed meanwhile.
type StaleError struct {
	Op     string
	Reason string
}

func (e *StaleError) Error() string {
	return e.Op + ": " + e.Reason
}

func (e *StaleError) Unwrap() error { return ErrStale }

func Stale(op, reason string) error {
	return &StaleError{Op: op, Reason: reason}
}
