package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	simerrors "github.com/simwire/simwire/internal/errors"
	"github.com/simwire/simwire/pkg/circuit"
	"github.com/simwire/simwire/pkg/message"
	"github.com/simwire/simwire/pkg/protocol"
)

// maxAcksPerMessage is the largest PacketAck group.
const maxAcksPerMessage = 255

// Handler processes one inbound message. It runs on the circuit's worker.
type Handler func(ctx context.Context, c *circuit.Circuit, m message.Message) error

// Authorizer admits a circuit code presented in UseCircuitCode.
type Authorizer interface {
	Authorize(ctx context.Context, code uint32, agentID, sessionID uuid.UUID) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, code uint32, agentID, sessionID uuid.UUID) error

// Authorize calls f.
func (f AuthorizerFunc) Authorize(ctx context.Context, code uint32, agentID, sessionID uuid.UUID) error {
	return f(ctx, code, agentID, sessionID)
}

// EventQueue is the HTTP fallback channel for one circuit's messages.
type EventQueue interface {
	// Attached reports whether c has an event queue.
	Attached(c *circuit.Circuit) bool

	// Enqueue buffers one message for c's next poll.
	Enqueue(c *circuit.Circuit, name string, body map[string]any) error

	// Unregister drops c's queue.
	Unregister(c *circuit.Circuit)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMessageRegistry replaces the compiled-in message registry.
func WithMessageRegistry(r *message.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// WithMetrics sets the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithAuthorizer sets the circuit code authorizer. Without one every
// circuit code is admitted.
func WithAuthorizer(a Authorizer) Option {
	return func(s *Server) {
		s.auth = a
	}
}

// WithEventQueue attaches the HTTP event queue.
func WithEventQueue(q EventQueue) Option {
	return func(s *Server) {
		s.events = q
	}
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(t trace.Tracer) Option {
	return func(s *Server) {
		s.tracer = t
	}
}

// Server owns the UDP socket and every circuit on it.
type Server struct {
	cfg        Config
	registry   *message.Registry
	table      *circuit.Table
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	auth       Authorizer
	events     EventQueue
	deprecated map[string]struct{}

	mu       sync.RWMutex
	handlers map[protocol.MessageID][]Handler
	onOpen   []func(*circuit.Circuit)
	onClose  []func(*circuit.Circuit, error)

	started atomic.Bool
	conn    atomic.Pointer[net.UDPConn]
	baseCtx context.Context

	admitMu   sync.Mutex
	admitting map[netip.AddrPort]struct{}
	admitWG   sync.WaitGroup
}

// New creates a server. It does not open a socket; see Run and Serve.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:       cfg.withDefaults(),
		handlers:  make(map[protocol.MessageID][]Handler),
		admitting: make(map[netip.AddrPort]struct{}),
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "udp_server")
	if s.registry == nil {
		s.registry = message.Default()
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.tracer == nil {
		s.tracer = defaultTracer()
	}
	if s.auth == nil {
		s.logger.Warn("no authorizer configured, every circuit code is admitted")
	}
	s.table = circuit.NewTable(s.logger)
	s.deprecated = make(map[string]struct{}, len(s.cfg.UDPDeprecated))
	for _, name := range s.cfg.UDPDeprecated {
		s.deprecated[name] = struct{}{}
	}
	return s
}

// Registry returns the message registry in use.
func (s *Server) Registry() *message.Registry {
	return s.registry
}

// RegisterInboundHandler adds h for messages with id. Handlers run in
// registration order. Registration is closed once the server started.
func (s *Server) RegisterInboundHandler(id protocol.MessageID, h Handler) error {
	if s.started.Load() {
		return ErrServerStarted
	}
	if _, err := s.registry.Resolve(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[id] = append(s.handlers[id], h)
	return nil
}

// OnCircuitOpen adds a hook called after a circuit is admitted.
func (s *Server) OnCircuitOpen(fn func(*circuit.Circuit)) error {
	if s.started.Load() {
		return ErrServerStarted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onOpen = append(s.onOpen, fn)
	return nil
}

// OnCircuitClose adds a hook called once per torn down circuit.
func (s *Server) OnCircuitClose(fn func(*circuit.Circuit, error)) error {
	if s.started.Load() {
		return ErrServerStarted
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onClose = append(s.onClose, fn)
	return nil
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", s.cfg.Addr)
	if err != nil {
		return simerrors.New(simerrors.CodeUDPBind).
			WithDetail(fmt.Sprintf("address %q", s.cfg.Addr)).
			Wrap(err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return simerrors.New(simerrors.CodeUDPBind).
			WithDetail(fmt.Sprintf("address %q", s.cfg.Addr)).
			Wrap(err)
	}
	return s.Serve(ctx, conn)
}

// Serve runs the receive loop and timers on conn until ctx is done. conn
// is closed on return and every circuit is torn down.
func (s *Server) Serve(ctx context.Context, conn *net.UDPConn) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerStarted
	}
	s.conn.Store(conn)
	s.logger.Info("server started", "addr", conn.LocalAddr().String())

	group, child := errgroup.WithContext(ctx)
	s.baseCtx = child

	group.Go(func() error {
		return s.receiveLoop(child, conn)
	})
	group.Go(func() error {
		return s.housekeepingLoop(child)
	})
	group.Go(func() error {
		return s.sweepLoop(child)
	})
	group.Go(func() error {
		<-child.Done()
		_ = conn.Close()
		return nil
	})

	err := group.Wait()
	s.admitWG.Wait()
	for _, c := range s.table.Snapshot() {
		s.Teardown(c, ErrServerClosed)
	}

	if err != nil {
		s.logger.Info("server stopped with error", "error", err)
	} else {
		s.logger.Info("server stopped")
	}
	return err
}

// LocalAddr returns the bound socket address once the server started.
func (s *Server) LocalAddr() netip.AddrPort {
	conn := s.conn.Load()
	if conn == nil {
		return netip.AddrPort{}
	}
	return conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Circuit returns the agent's live circuit, or nil.
func (s *Server) Circuit(agentID uuid.UUID) *circuit.Circuit {
	return s.table.ByAgent(agentID)
}

// CircuitByAddr returns the circuit for a remote endpoint, or nil.
func (s *Server) CircuitByAddr(addr netip.AddrPort) *circuit.Circuit {
	return s.table.ByAddr(addr)
}

// Circuits returns every live circuit.
func (s *Server) Circuits() []*circuit.Circuit {
	return s.table.Snapshot()
}

// Teardown closes c and releases it from the table. Only the first call
// for a circuit has any effect and returns true.
func (s *Server) Teardown(c *circuit.Circuit, reason error) bool {
	if c == nil || !s.table.Remove(c) {
		return false
	}
	s.metrics.circuits.Dec()
	s.metrics.teardowns.WithLabelValues(teardownLabel(reason)).Inc()
	if s.events != nil {
		s.events.Unregister(c)
	}

	s.logger.Info("circuit closed",
		"addr", c.Addr.String(),
		"agent_id", c.AgentID,
		"reason", reason,
		"lifetime", time.Since(c.Created()).Round(time.Millisecond))

	s.mu.RLock()
	hooks := s.onClose
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(c, reason)
	}
	return true
}

func teardownLabel(reason error) string {
	switch {
	case errors.Is(reason, circuit.ErrCircuitTimeout):
		return "timeout"
	case errors.Is(reason, ErrKicked):
		return "kicked"
	case errors.Is(reason, ErrLoggedOut):
		return "logout"
	case errors.Is(reason, ErrReplaced):
		return "replaced"
	case errors.Is(reason, ErrServerClosed):
		return "shutdown"
	case errors.Is(reason, circuit.ErrClosed):
		return "peer_closed"
	default:
		return "other"
	}
}

// openCircuit registers a new circuit for p. When another circuit won the
// race for the endpoint, that circuit is returned instead.
func (s *Server) openCircuit(p circuit.Params, now time.Time) *circuit.Circuit {
	if old := s.table.ByAgent(p.AgentID); old != nil && p.AgentID != uuid.Nil && old.Addr != p.Addr {
		s.Teardown(old, ErrReplaced)
	}

	c := circuit.New(p, s.cfg.Circuit, now)
	if err := s.table.Add(c); err != nil {
		c.Close()
		return s.table.ByAddr(p.Addr)
	}
	s.metrics.circuits.Inc()
	s.logger.Info("circuit opened",
		"addr", p.Addr.String(),
		"agent_id", p.AgentID,
		"trusted", p.Trusted)

	s.mu.RLock()
	hooks := s.onOpen
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(c)
	}
	return c
}

func (s *Server) receiveLoop(ctx context.Context, conn *net.UDPConn) error {
	buf := make([]byte, s.cfg.MaxPacketSize+1)
	for {
		n, addr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return NewCircuitError(netip.AddrPort{}, "read", err)
		}
		s.metrics.bytesIn.Add(float64(n))
		if n > s.cfg.MaxPacketSize {
			s.metrics.drop(dropMalformed)
			s.logger.Debug("oversized datagram dropped", "addr", addr.String(), "size", n)
			continue
		}
		addr = netip.AddrPortFrom(addr.Addr().Unmap(), addr.Port())
		s.handleDatagram(ctx, addr, buf[:n], time.Now())
	}
}

// handleDatagram decodes one datagram and routes it to its circuit.
func (s *Server) handleDatagram(ctx context.Context, addr netip.AddrPort, data []byte, now time.Time) {
	p, err := protocol.DecodePacket(data)
	if err != nil {
		s.metrics.drop(dropMalformed)
		s.logger.Debug("malformed datagram dropped", "addr", addr.String(), "error", err)
		return
	}

	c := s.table.ByAddr(addr)
	if c == nil {
		if s.cfg.trusted(addr) {
			c = s.openCircuit(circuit.Params{Addr: addr, Trusted: true}, now)
			if c == nil {
				return
			}
		} else {
			s.admit(ctx, addr, p)
			return
		}
	}
	s.receive(c, p, now)
}

// admit authorizes UseCircuitCode from an unknown endpoint. Everything
// else from such endpoints is dropped.
func (s *Server) admit(ctx context.Context, addr netip.AddrPort, p *protocol.Packet) {
	if p.ID != message.IDUseCircuitCode {
		s.metrics.drop(dropNoCircuit)
		s.logger.Debug("datagram from unknown endpoint dropped", "addr", addr.String(), "message", p.ID)
		return
	}
	var ucc message.UseCircuitCode
	if err := message.Decode(&ucc, p.Body); err != nil {
		s.metrics.drop(dropMalformed)
		s.logger.Debug("malformed UseCircuitCode dropped", "addr", addr.String(), "error", err)
		return
	}

	s.admitMu.Lock()
	if _, busy := s.admitting[addr]; busy {
		s.admitMu.Unlock()
		return
	}
	s.admitting[addr] = struct{}{}
	s.admitWG.Add(1)
	s.admitMu.Unlock()

	go func() {
		defer func() {
			s.admitMu.Lock()
			delete(s.admitting, addr)
			s.admitMu.Unlock()
			s.admitWG.Done()
		}()

		if s.auth != nil {
			actx, cancel := context.WithTimeout(ctx, s.cfg.AdmitTimeout)
			err := s.auth.Authorize(actx, ucc.Code, ucc.AgentID, ucc.SessionID)
			cancel()
			if err != nil {
				s.metrics.drop(dropNotAllowed)
				s.logger.Info("circuit refused",
					"addr", addr.String(),
					"agent_id", ucc.AgentID,
					"error", err)
				return
			}
		}
		if ctx.Err() != nil {
			return
		}

		c := s.openCircuit(circuit.Params{
			Addr:      addr,
			Code:      ucc.Code,
			AgentID:   ucc.AgentID,
			SessionID: ucc.SessionID,
			Trusted:   s.cfg.trusted(addr),
		}, time.Now())
		if c != nil {
			s.receive(c, p, time.Now())
		}
	}()
}

// receive applies one decoded packet to its circuit.
func (s *Server) receive(c *circuit.Circuit, p *protocol.Packet, now time.Time) {
	desc, err := s.registry.Resolve(p.ID)
	if err != nil {
		// Keep acking so the peer stops resending what we cannot read.
		c.Inbound(p, now)
		s.metrics.drop(dropUnknown)
		s.logger.Debug("unknown message dropped", "addr", c.Addr.String(), "message", p.ID)
		return
	}
	if !desc.Trust.Allows(c.Trusted) {
		s.metrics.drop(dropTrust)
		s.logger.Debug("message dropped",
			"addr", c.Addr.String(),
			"message", desc.Name,
			"error", ErrTrustViolation)
		return
	}

	m := desc.New()
	if err := message.Decode(m, p.Body); err != nil {
		s.metrics.drop(dropMalformed)
		s.logger.Debug("malformed message dropped",
			"addr", c.Addr.String(),
			"message", desc.Name,
			"error", err)
		return
	}
	if !c.Inbound(p, now) {
		s.metrics.drop(dropDuplicate)
		return
	}
	s.metrics.packetsIn.WithLabelValues(desc.Name).Inc()

	switch msg := m.(type) {
	case *message.PacketAck:
		c.Ack(msg.Packets...)
		return
	case *message.StartPingCheck:
		if err := s.Send(c, &message.CompletePingCheck{PingID: msg.PingID}); err != nil {
			s.logger.Debug("ping reply failed", "addr", c.Addr.String(), "error", err)
		}
		return
	case *message.CloseCircuit:
		s.Teardown(c, circuit.ErrClosed)
		return
	}

	s.mu.RLock()
	handlers := s.handlers[desc.ID]
	s.mu.RUnlock()
	if len(handlers) == 0 {
		return
	}
	if !c.Enqueue(func() { s.dispatch(c, desc, m, handlers) }) {
		s.metrics.drop(dropQueueFull)
		s.logger.Debug("inbound queue full", "addr", c.Addr.String(), "message", desc.Name)
	}
}

// dispatch runs the handlers for one message on the circuit's worker.
func (s *Server) dispatch(c *circuit.Circuit, desc *message.Descriptor, m message.Message, handlers []Handler) {
	ctx, span := s.startDispatchSpan(s.baseCtx, c, desc)
	var firstErr error
	for _, h := range handlers {
		if err := s.safeHandle(ctx, h, c, desc, m); err != nil {
			s.logger.Debug("handler failed",
				"addr", c.Addr.String(),
				"message", desc.Name,
				"error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	endSpan(span, firstErr)
}

// safeHandle runs a handler with panic recovery.
func (s *Server) safeHandle(ctx context.Context, h Handler, c *circuit.Circuit, desc *message.Descriptor, m message.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.metrics.handlerPanics.Inc()
			s.logger.Error("handler panic",
				"panic", r,
				"addr", c.Addr.String(),
				"message", desc.Name,
				"stack", string(stack))
			err = &HandlerError{Circuit: c.Addr, Message: desc.Name, Panic: r, Stack: stack}
		}
	}()
	return h(ctx, c, m)
}

func (s *Server) housekeepingLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// tick flushes acks and resends overdue packets on every circuit.
func (s *Server) tick(now time.Time) {
	s.table.Each(func(c *circuit.Circuit) bool {
		s.flushAcks(c)

		resends, dead := c.Resend(now)
		if dead {
			s.Teardown(c, NewCircuitError(c.Addr, "resend", circuit.ErrCircuitTimeout))
			return true
		}
		for _, r := range resends {
			if err := s.write(c.Addr, r.Data); err != nil {
				s.logger.Debug("resend failed", "addr", c.Addr.String(), "error", err)
				continue
			}
			s.metrics.resends.Inc()
		}
		return true
	})
}

// flushAcks sends acks that found no outbound packet to ride on.
func (s *Server) flushAcks(c *circuit.Circuit) {
	for {
		acks := c.TakeAcks(maxAcksPerMessage)
		if len(acks) == 0 {
			return
		}
		if err := s.Send(c, &message.PacketAck{Packets: acks}); err != nil {
			s.logger.Debug("ack flush failed", "addr", c.Addr.String(), "error", err)
			return
		}
	}
}

func (s *Server) sweepLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			for _, c := range s.table.Expired(now, s.cfg.IdleTimeout) {
				s.Teardown(c, NewCircuitError(c.Addr, "idle", circuit.ErrCircuitTimeout))
			}
		}
	}
}
