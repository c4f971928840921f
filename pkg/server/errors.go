package server

import (
	"errors"
	"fmt"
	"net/netip"
)

// Sentinel errors for server and circuit error conditions.
var (
	// ErrTrustViolation marks a message that arrived on a circuit whose
	// trust does not allow it. It is never reported to the peer.
	ErrTrustViolation = errors.New("server: trust violation")

	// ErrServerStarted is returned when handlers are registered or Serve is
	// called after the server started.
	ErrServerStarted = errors.New("server: already started")

	// ErrServerClosed is the teardown reason for circuits closed on shutdown.
	ErrServerClosed = errors.New("server: closed")

	// ErrNoCircuit is returned when no live circuit matches a lookup.
	ErrNoCircuit = errors.New("server: no circuit")

	// ErrNotAuthorized is returned by an Authorizer that rejects a circuit code.
	ErrNotAuthorized = errors.New("server: circuit code not authorized")

	// ErrKicked is the teardown reason for administrative disconnects.
	ErrKicked = errors.New("server: kicked")

	// ErrReplaced is the teardown reason for a circuit superseded by the
	// same agent connecting from another endpoint.
	ErrReplaced = errors.New("server: replaced by a newer circuit")

	// ErrLoggedOut is the teardown reason after a completed logout.
	ErrLoggedOut = errors.New("server: logged out")
)

// CircuitError wraps an error with circuit context for debugging.
type CircuitError struct {
	Circuit netip.AddrPort
	Op      string // Operation that failed
	Err     error  // Underlying error
}

// Error returns the error message with circuit context.
func (e *CircuitError) Error() string {
	if !e.Circuit.IsValid() {
		return fmt.Sprintf("server: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("server: circuit %s: %s: %v", e.Circuit, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *CircuitError) Unwrap() error {
	return e.Err
}

// NewCircuitError creates a new CircuitError.
func NewCircuitError(addr netip.AddrPort, op string, err error) *CircuitError {
	return &CircuitError{
		Circuit: addr,
		Op:      op,
		Err:     err,
	}
}

// HandlerError describes a panic raised by an inbound handler.
type HandlerError struct {
	Circuit netip.AddrPort
	Message string
	Panic   any
	Stack   []byte
}

// Error returns a short description of the panic.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("server: circuit %s: handler for %s panicked: %v", e.Circuit, e.Message, e.Panic)
}
