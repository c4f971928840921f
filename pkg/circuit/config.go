package circuit

import "time"

// Config holds reliability tuning for every circuit.
type Config struct {
	// ResendTimeout is how long a reliable packet waits for its ack before
	// it is resent.
	// Default: 2 seconds.
	ResendTimeout time.Duration

	// MaxResends is how many times a packet is resent before the circuit
	// is considered dead.
	// Default: 5.
	MaxResends int

	// MaxAppendedAcks caps the acks piggybacked on one outbound datagram.
	// Default: 32.
	MaxAppendedAcks int

	// SeenWindow is how many inbound reliable sequence numbers are
	// remembered for duplicate detection.
	// Default: 1024.
	SeenWindow int

	// MaxUnacked bounds the reliable packets awaiting acks. Reliable sends
	// beyond it fail with ErrQueueFull.
	// Default: 1024.
	MaxUnacked int

	// MaxPendingAcks bounds acks waiting to be sent. The oldest are
	// dropped past it; the peer resends and is acked again.
	// Default: 1024.
	MaxPendingAcks int

	// InboundQueue is the capacity of the per-circuit work queue.
	// Default: 256.
	InboundQueue int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ResendTimeout:   2 * time.Second,
		MaxResends:      5,
		MaxAppendedAcks: 32,
		SeenWindow:      1024,
		MaxUnacked:      1024,
		MaxPendingAcks:  1024,
		InboundQueue:    256,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ResendTimeout <= 0 {
		c.ResendTimeout = d.ResendTimeout
	}
	if c.MaxResends <= 0 {
		c.MaxResends = d.MaxResends
	}
	if c.MaxAppendedAcks <= 0 {
		c.MaxAppendedAcks = d.MaxAppendedAcks
	}
	if c.SeenWindow <= 0 {
		c.SeenWindow = d.SeenWindow
	}
	if c.MaxUnacked <= 0 {
		c.MaxUnacked = d.MaxUnacked
	}
	if c.MaxPendingAcks <= 0 {
		c.MaxPendingAcks = d.MaxPendingAcks
	}
	if c.InboundQueue <= 0 {
		c.InboundQueue = d.InboundQueue
	}
	return c
}
