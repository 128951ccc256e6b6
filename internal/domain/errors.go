package domain

import (
	"errors"
	"fmt"
)

// Error types for consistent error handling across the gateway.

// ErrValidation indicates bad or missing caller input. It never reaches the
// backend. Code is the stable machine-readable reason (missing_input,
// bad_type, no_endpoints, too_many_questions).
type ErrValidation struct {
	Code    string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error [%s]: %s", e.Code, e.Message)
}

// ErrConnection indicates a network/transport failure reaching the backend.
type ErrConnection struct {
	Err error
}

func (e *ErrConnection) Error() string {
	return fmt.Sprintf("backend connection error: %v", e.Err)
}

func (e *ErrConnection) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates the backend did not respond within the bounded wait.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("backend timed out: %s", e.Operation)
}

// ErrUpstream indicates the backend responded but signaled a semantic
// failure or returned an empty result.
type ErrUpstream struct {
	Message string
}

func (e *ErrUpstream) Error() string {
	return fmt.Sprintf("upstream error: %s", e.Message)
}

// ErrCircuitOpen indicates the circuit breaker refused the call.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrConfiguration indicates the gateway was invoked with no usable backend
// configured. Fatal at startup, not per-request.
type ErrConfiguration struct {
	Message string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// IsTransient reports whether an error is a transient transport failure
// worth a retry. Upstream semantic errors and open circuits are not.
func IsTransient(err error) bool {
	var conn *ErrConnection
	var timeout *ErrTimeout
	return errors.As(err, &conn) || errors.As(err, &timeout)
}
