package server

import (
	"net/netip"
	"time"

	"github.com/simwire/simwire/pkg/circuit"
	"github.com/simwire/simwire/pkg/protocol"
)

// Config holds configuration for the UDP server.
type Config struct {
	// Addr is the UDP listen address used by Run.
	// Default: "0.0.0.0:9000".
	Addr string

	// MaxPacketSize is the largest datagram read from the socket. Larger
	// datagrams are dropped as malformed.
	// Default: protocol.MaxPacketSize.
	MaxPacketSize int

	// Circuit is the reliability tuning applied to every circuit.
	Circuit circuit.Config

	// TickInterval is the period of the ack flush and resend pass.
	// Default: 100 milliseconds.
	TickInterval time.Duration

	// IdleTimeout closes circuits without inbound traffic for this long.
	// Default: 60 seconds.
	IdleTimeout time.Duration

	// SweepInterval is the period of the idle-circuit sweep.
	// Default: 5 seconds.
	SweepInterval time.Duration

	// AdmitTimeout bounds one Authorizer call.
	// Default: 5 seconds.
	AdmitTimeout time.Duration

	// TrustedPeers lists simulator endpoints whose circuits are trusted.
	// A zero port matches every port of the address.
	TrustedPeers []netip.AddrPort

	// UDPDeprecated names messages that go to the event queue whenever a
	// circuit has one, in addition to those the registry marks.
	UDPDeprecated []string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:          "0.0.0.0:9000",
		MaxPacketSize: protocol.MaxPacketSize,
		Circuit:       circuit.DefaultConfig(),
		TickInterval:  100 * time.Millisecond,
		IdleTimeout:   60 * time.Second,
		SweepInterval: 5 * time.Second,
		AdmitTimeout:  5 * time.Second,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Addr == "" {
		c.Addr = d.Addr
	}
	if c.MaxPacketSize <= 0 || c.MaxPacketSize > protocol.MaxPacketSize {
		c.MaxPacketSize = d.MaxPacketSize
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = d.SweepInterval
	}
	if c.AdmitTimeout <= 0 {
		c.AdmitTimeout = d.AdmitTimeout
	}
	return c
}

// trusted reports whether addr is a trusted peer.
func (c *Config) trusted(addr netip.AddrPort) bool {
	for _, peer := range c.TrustedPeers {
		if peer.Addr() != addr.Addr() {
			continue
		}
		if peer.Port() == 0 || peer.Port() == addr.Port() {
			return true
		}
	}
	return false
}
