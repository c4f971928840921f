package server

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/simwire/simwire/pkg/circuit"
)

func TestCircuitError(t *testing.T) {
	addr := netip.MustParseAddrPort("10.0.0.1:9000")
	err := NewCircuitError(addr, "resend", circuit.ErrCircuitTimeout)

	if !errors.Is(err, circuit.ErrCircuitTimeout) {
		t.Error("errors.Is(ErrCircuitTimeout) = false, want true")
	}
	want := "server: circuit 10.0.0.1:9000: resend: circuit: timed out"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	noAddr := NewCircuitError(netip.AddrPort{}, "read", ErrServerClosed)
	if got, want := noAddr.Error(), "server: read: server: closed"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestTeardownLabel(t *testing.T) {
	tests := []struct {
		reason error
		want   string
	}{
		{circuit.ErrCircuitTimeout, "timeout"},
		{NewCircuitError(netip.AddrPort{}, "idle", circuit.ErrCircuitTimeout), "timeout"},
		{ErrKicked, "kicked"},
		{ErrLoggedOut, "logout"},
		{ErrReplaced, "replaced"},
		{ErrServerClosed, "shutdown"},
		{circuit.ErrClosed, "peer_closed"},
		{errors.New("other"), "other"},
	}
	for _, tt := range tests {
		if got := teardownLabel(tt.reason); got != tt.want {
			t.Errorf("teardownLabel(%v) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestConfigTrusted(t *testing.T) {
	cfg := Config{TrustedPeers: []netip.AddrPort{
		netip.MustParseAddrPort("10.0.0.1:0"),
		netip.MustParseAddrPort("10.0.0.2:9001"),
	}}
	tests := []struct {
		addr string
		want bool
	}{
		{"10.0.0.1:1234", true},
		{"10.0.0.2:9001", true},
		{"10.0.0.2:9002", false},
		{"10.0.0.3:9001", false},
	}
	for _, tt := range tests {
		if got := cfg.trusted(netip.MustParseAddrPort(tt.addr)); got != tt.want {
			t.Errorf("trusted(%s) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{MaxPacketSize: 1 << 20}.withDefaults()
	d := DefaultConfig()
	if cfg.Addr != d.Addr || cfg.TickInterval != d.TickInterval || cfg.IdleTimeout != d.IdleTimeout {
		t.Errorf("withDefaults() = %+v, want defaults", cfg)
	}
	if cfg.MaxPacketSize != d.MaxPacketSize {
		t.Errorf("MaxPacketSize = %d, want %d", cfg.MaxPacketSize, d.MaxPacketSize)
	}
}
