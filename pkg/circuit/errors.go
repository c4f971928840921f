package circuit

import "errors"

var (
	// ErrClosed is returned for operations on a torn-down circuit.
	ErrClosed = errors.New("circuit: closed")

	// ErrQueueFull is returned when a reliable send would exceed MaxUnacked.
	ErrQueueFull = errors.New("circuit: too many unacknowledged packets")

	// ErrCircuitTimeout is the teardown reason for circuits that went idle
	// or exhausted their resends.
	ErrCircuitTimeout = errors.New("circuit: timed out")

	// ErrAddrInUse is returned by Table.Add when the endpoint already has a circuit.
	ErrAddrInUse = errors.New("circuit: endpoint already has a circuit")
)
