package eventqueue

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/simwire/simwire/pkg/circuit"
)

// Config holds event queue settings.
type Config struct {
	// PollTimeout is how long a poll waits for events.
	// Default: 30 seconds.
	PollTimeout time.Duration

	// MaxEvents bounds the undelivered events per circuit.
	// Default: 128.
	MaxEvents int

	// WriteTimeout bounds one WebSocket write.
	// Default: 10 seconds.
	WriteTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		PollTimeout:  30 * time.Second,
		MaxEvents:    128,
		WriteTimeout: 10 * time.Second,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRegisterer registers the manager's metrics with r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(m *Manager) {
		m.registerer = r
	}
}

// WithTracer sets the tracer used for poll spans.
func WithTracer(t trace.Tracer) Option {
	return func(m *Manager) {
		m.tracer = t
	}
}

type entry struct {
	capID   uuid.UUID
	circuit *circuit.Circuit
	queue   *Queue
}

// Manager owns the event queues of every circuit and the capability ids
// that address them over HTTP.
type Manager struct {
	cfg        Config
	logger     *slog.Logger
	registerer prometheus.Registerer
	tracer     trace.Tracer

	mu        sync.RWMutex
	byCap     map[uuid.UUID]*entry
	byCircuit map[*circuit.Circuit]*entry

	queues    prometheus.Gauge
	enqueued  *prometheus.CounterVec
	rejected  prometheus.Counter
	delivered prometheus.Counter
	polls     *prometheus.CounterVec
}

// NewManager creates a manager.
func NewManager(cfg Config, opts ...Option) *Manager {
	d := DefaultConfig()
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = d.PollTimeout
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = d.MaxEvents
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = d.WriteTimeout
	}

	m := &Manager{
		cfg:       cfg,
		byCap:     make(map[uuid.UUID]*entry),
		byCircuit: make(map[*circuit.Circuit]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	m.logger = m.logger.With("component", "event_queue")
	if m.registerer == nil {
		m.registerer = prometheus.NewRegistry()
	}
	if m.tracer == nil {
		m.tracer = otel.Tracer("simwire/eventqueue")
	}

	factory := promauto.With(m.registerer)
	m.queues = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "simwire",
		Subsystem: "event_queue",
		Name:      "queues",
		Help:      "Number of registered event queues",
	})
	m.enqueued = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "simwire",
		Subsystem: "event_queue",
		Name:      "enqueued_total",
		Help:      "Events accepted by message name",
	}, []string{"message"})
	m.rejected = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "simwire",
		Subsystem: "event_queue",
		Name:      "rejected_total",
		Help:      "Events rejected because the queue was full",
	})
	m.delivered = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "simwire",
		Subsystem: "event_queue",
		Name:      "delivered_total",
		Help:      "Events handed to a poll",
	})
	m.polls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "simwire",
		Subsystem: "event_queue",
		Name:      "polls_total",
		Help:      "Completed polls by result",
	}, []string{"result"})
	return m
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Register creates c's queue and returns its capability id. Registering
// again returns the existing capability.
func (m *Manager) Register(c *circuit.Circuit) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.byCircuit[c]; ok {
		return e.capID
	}
	q := NewQueue(m.cfg.MaxEvents)
	q.onDrain = func(n int) { m.delivered.Add(float64(n)) }
	e := &entry{capID: uuid.New(), circuit: c, queue: q}
	m.byCap[e.capID] = e
	m.byCircuit[c] = e
	m.queues.Inc()

	m.logger.Debug("event queue registered", "addr", c.Addr.String(), "agent_id", c.AgentID)
	return e.capID
}

// Attached reports whether c has a queue.
func (m *Manager) Attached(c *circuit.Circuit) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byCircuit[c]
	return ok
}

// Enqueue adds one message for c.
func (m *Manager) Enqueue(c *circuit.Circuit, name string, body map[string]any) error {
	m.mu.RLock()
	e, ok := m.byCircuit[c]
	m.mu.RUnlock()
	if !ok {
		return ErrNoQueue
	}
	if err := e.queue.Enqueue(Event{Message: name, Body: body}); err != nil {
		if errors.Is(err, ErrQueueFull) {
			m.rejected.Inc()
			m.logger.Warn("event queue full", "addr", c.Addr.String(), "message", name)
		}
		return err
	}
	m.enqueued.WithLabelValues(name).Inc()
	return nil
}

// Unregister closes c's queue and revokes its capability.
func (m *Manager) Unregister(c *circuit.Circuit) {
	m.mu.Lock()
	e, ok := m.byCircuit[c]
	if ok {
		delete(m.byCircuit, c)
		delete(m.byCap, e.capID)
	}
	m.mu.Unlock()

	if ok {
		e.queue.Close()
		m.queues.Dec()
	}
}

// Queue returns the queue addressed by a capability id.
func (m *Manager) Queue(capID uuid.UUID) (*Queue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.byCap[capID]
	if !ok {
		return nil, false
	}
	return e.queue, true
}

// Len returns the number of registered queues.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byCap)
}
