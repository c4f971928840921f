package circuit

import (
	"net/netip"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/simwire/simwire/pkg/protocol"
)

// Params identify a circuit. They never change after New.
type Params struct {
	Addr      netip.AddrPort
	Code      uint32
	AgentID   uuid.UUID
	SessionID uuid.UUID

	// Trusted marks circuits to peer simulators.
	Trusted bool
}

// Circuit is one logical connection.
type Circuit struct {
	Params

	cfg     Config
	created time.Time

	mu        sync.Mutex
	nextSeq   uint32
	highestIn uint32
	seenAny   bool
	seen      map[uint32]struct{}
	seenRing  []uint32
	seenNext  int
	acks      []uint32
	unacked   map[uint32]*pending
	closed    bool

	lastActive atomic.Int64

	work      chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// pending is a reliable datagram awaiting its ack.
type pending struct {
	data    []byte
	sent    time.Time
	retries int
}

// Resend is an overdue datagram ready to go back on the wire.
type Resend struct {
	Sequence uint32
	Data     []byte
	Retries  int
}

// New creates a circuit and starts its worker.
func New(p Params, cfg Config, now time.Time) *Circuit {
	cfg = cfg.withDefaults()
	c := &Circuit{
		Params:   p,
		cfg:      cfg,
		created:  now,
		seen:     make(map[uint32]struct{}, cfg.SeenWindow),
		seenRing: make([]uint32, 0, cfg.SeenWindow),
		unacked:  make(map[uint32]*pending),
		work:     make(chan func(), cfg.InboundQueue),
		done:     make(chan struct{}),
	}
	c.Touch(now)
	go c.run()
	return c
}

// Created returns when the circuit was opened.
func (c *Circuit) Created() time.Time {
	return c.created
}

// Touch records traffic at now.
func (c *Circuit) Touch(now time.Time) {
	c.lastActive.Store(now.UnixNano())
}

// Idle returns how long the circuit has gone without inbound traffic.
func (c *Circuit) Idle(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastActive.Load()))
}

// Outbound assigns p the next sequence number, encodes it and records it
// for retransmission if it is reliable. Pending acks are appended when the
// datagram has room under the MTU.
func (c *Circuit) Outbound(p *protocol.Packet, now time.Time) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if p.Reliable() && len(c.unacked) >= c.cfg.MaxUnacked {
		return nil, ErrQueueFull
	}

	p.Sequence = c.nextSeq + 1
	p.Acks = nil
	data, err := protocol.EncodePacket(p)
	if err != nil {
		return nil, err
	}
	c.nextSeq++

	if p.Reliable() {
		c.unacked[p.Sequence] = &pending{data: slices.Clone(data), sent: now}
	}

	room := (protocol.MTU - len(data) - 1) / 4
	if n := min(room, c.cfg.MaxAppendedAcks, len(c.acks)); n > 0 {
		if withAcks, err := protocol.AppendAcks(data, c.acks[:n]); err == nil {
			data = withAcks
			c.acks = slices.Delete(c.acks, 0, n)
		}
	}
	return data, nil
}

// Inbound records an arriving packet: its piggybacked acks retire
// outbound packets and a reliable packet is queued for acknowledgment.
// It returns false when the packet is a duplicate whose body must not be
// delivered again. Unreliable packets are never treated as duplicates.
func (c *Circuit) Inbound(p *protocol.Packet, now time.Time) bool {
	c.Touch(now)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	for _, seq := range p.Acks {
		delete(c.unacked, seq)
	}
	if !p.Reliable() {
		return true
	}

	c.queueAckLocked(p.Sequence)
	if c.seenLocked(p.Sequence) {
		return false
	}
	c.rememberLocked(p.Sequence)
	return true
}

func (c *Circuit) queueAckLocked(seq uint32) {
	if len(c.acks) >= c.cfg.MaxPendingAcks {
		c.acks = slices.Delete(c.acks, 0, 1)
	}
	c.acks = append(c.acks, seq)
}

// seenLocked reports whether seq was delivered already. Sequence numbers
// further behind the high-water mark than the window are assumed seen.
func (c *Circuit) seenLocked(seq uint32) bool {
	if _, ok := c.seen[seq]; ok {
		return true
	}
	if !c.seenAny {
		return false
	}
	behind := int32(c.highestIn - seq)
	return behind > 0 && int(behind) >= c.cfg.SeenWindow
}

func (c *Circuit) rememberLocked(seq uint32) {
	if !c.seenAny || int32(seq-c.highestIn) > 0 {
		c.highestIn = seq
		c.seenAny = true
	}
	if len(c.seenRing) < c.cfg.SeenWindow {
		c.seenRing = append(c.seenRing, seq)
	} else {
		delete(c.seen, c.seenRing[c.seenNext])
		c.seenRing[c.seenNext] = seq
		c.seenNext = (c.seenNext + 1) % c.cfg.SeenWindow
	}
	c.seen[seq] = struct{}{}
}

// Ack retires acknowledged outbound packets and returns how many were pending.
func (c *Circuit) Ack(seqs ...uint32) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, seq := range seqs {
		if _, ok := c.unacked[seq]; ok {
			delete(c.unacked, seq)
			n++
		}
	}
	return n
}

// TakeAcks removes and returns up to limit pending acks, oldest first.
func (c *Circuit) TakeAcks(limit int) []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := min(limit, len(c.acks))
	if n <= 0 {
		return nil
	}
	out := slices.Clone(c.acks[:n])
	c.acks = slices.Delete(c.acks, 0, n)
	return out
}

// Resend returns the reliable packets whose ack is overdue, flagged as
// resent, in sequence order. dead reports that some packet already used
// all of its resends; the caller must tear the circuit down.
func (c *Circuit) Resend(now time.Time) (out []Resend, dead bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A dead circuit leaves every pending packet untouched.
	for _, p := range c.unacked {
		if now.Sub(p.sent) >= c.cfg.ResendTimeout && p.retries >= c.cfg.MaxResends {
			return nil, true
		}
	}

	for seq, p := range c.unacked {
		if now.Sub(p.sent) < c.cfg.ResendTimeout {
			continue
		}
		p.retries++
		p.sent = now
		p.data[0] |= byte(protocol.FlagResent)
		out = append(out, Resend{Sequence: seq, Data: slices.Clone(p.data), Retries: p.retries})
	}
	slices.SortFunc(out, func(a, b Resend) int {
		return int(int32(a.Sequence - b.Sequence))
	})
	return out, false
}

// Unacked returns the number of reliable packets awaiting acks.
func (c *Circuit) Unacked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.unacked)
}

// PendingAcks returns the number of acks waiting to be sent.
func (c *Circuit) PendingAcks() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.acks)
}

// Enqueue schedules fn on the circuit worker. Work runs one item at a time
// in queue order. It returns false when the queue is full or the circuit
// is closed.
func (c *Circuit) Enqueue(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.work <- fn:
		return true
	default:
		return false
	}
}

func (c *Circuit) run() {
	for {
		select {
		case <-c.done:
			c.drain()
			return
		case fn := <-c.work:
			select {
			case <-c.done:
				c.drain()
				return
			default:
			}
			fn()
		}
	}
}

func (c *Circuit) drain() {
	for {
		select {
		case <-c.work:
		default:
			return
		}
	}
}

// Done is closed when the circuit is torn down.
func (c *Circuit) Done() <-chan struct{} {
	return c.done
}

// Closed reports whether the circuit has been torn down.
func (c *Circuit) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close tears the circuit down: queued work and reliability state are
// discarded and the worker stops. Only the first call returns true.
func (c *Circuit) Close() bool {
	first := false
	c.closeOnce.Do(func() {
		first = true
		c.mu.Lock()
		c.closed = true
		c.unacked = nil
		c.acks = nil
		c.seen = nil
		c.seenRing = nil
		c.mu.Unlock()
		close(c.done)
	})
	return first
}
