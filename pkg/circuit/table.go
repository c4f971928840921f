package circuit

import (
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Table indexes live circuits by endpoint, circuit code and agent.
type Table struct {
	mu      sync.RWMutex
	byAddr  map[netip.AddrPort]*Circuit
	byCode  map[uint32]*Circuit
	byAgent map[uuid.UUID]*Circuit

	logger *slog.Logger
}

// NewTable creates an empty table.
func NewTable(logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	return &Table{
		byAddr:  make(map[netip.AddrPort]*Circuit),
		byCode:  make(map[uint32]*Circuit),
		byAgent: make(map[uuid.UUID]*Circuit),
		logger:  logger.With("component", "circuit_table"),
	}
}

// Add registers c. An agent that reconnects from a new endpoint replaces
// its old circuit in the agent index; the old circuit stays reachable by
// address until it is removed.
func (t *Table) Add(c *Circuit) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byAddr[c.Addr]; ok {
		return ErrAddrInUse
	}
	t.byAddr[c.Addr] = c
	if c.Code != 0 {
		t.byCode[c.Code] = c
	}
	if c.AgentID != uuid.Nil {
		t.byAgent[c.AgentID] = c
	}

	t.logger.Debug("circuit added",
		"addr", c.Addr.String(),
		"agent_id", c.AgentID,
		"trusted", c.Trusted,
		"circuits", len(t.byAddr))
	return nil
}

// ByAddr returns the circuit for a remote endpoint, or nil.
func (t *Table) ByAddr(addr netip.AddrPort) *Circuit {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byAddr[addr]
}

// ByCode returns the circuit opened with a circuit code, or nil.
func (t *Table) ByCode(code uint32) *Circuit {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byCode[code]
}

// ByAgent returns the agent's current circuit, or nil.
func (t *Table) ByAgent(id uuid.UUID) *Circuit {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.byAgent[id]
}

// Remove unregisters and closes c. It returns true only for the call that
// actually tore the circuit down.
func (t *Table) Remove(c *Circuit) bool {
	t.mu.Lock()
	if t.byAddr[c.Addr] == c {
		delete(t.byAddr, c.Addr)
	}
	if t.byCode[c.Code] == c {
		delete(t.byCode, c.Code)
	}
	if t.byAgent[c.AgentID] == c {
		delete(t.byAgent, c.AgentID)
	}
	remaining := len(t.byAddr)
	t.mu.Unlock()

	if !c.Close() {
		return false
	}
	t.logger.Debug("circuit removed",
		"addr", c.Addr.String(),
		"circuits", remaining)
	return true
}

// Len returns the number of live circuits.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byAddr)
}

// Snapshot returns the live circuits.
func (t *Table) Snapshot() []*Circuit {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]*Circuit, 0, len(t.byAddr))
	for _, c := range t.byAddr {
		out = append(out, c)
	}
	return out
}

// Each calls fn for every live circuit until fn returns false. fn runs
// without the table lock held.
func (t *Table) Each(fn func(*Circuit) bool) {
	for _, c := range t.Snapshot() {
		if !fn(c) {
			return
		}
	}
}

// Expired returns circuits idle for longer than timeout.
func (t *Table) Expired(now time.Time, timeout time.Duration) []*Circuit {
	var out []*Circuit
	t.Each(func(c *Circuit) bool {
		if c.Idle(now) > timeout {
			out = append(out, c)
		}
		return true
	})
	return out
}
