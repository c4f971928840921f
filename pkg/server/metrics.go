package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons recorded by the drops counter.
const (
	dropMalformed  = "malformed"
	dropUnknown    = "unknown_message"
	dropTrust      = "trust_violation"
	dropDuplicate  = "duplicate"
	dropNoCircuit  = "no_circuit"
	dropQueueFull  = "queue_full"
	dropNotAllowed = "not_authorized"
)

// MetricsConfig configures server metrics.
type MetricsConfig struct {
	// Namespace is the metric namespace (default: "simwire").
	Namespace string

	// Subsystem is the metric subsystem (default: "udp").
	Subsystem string

	// ConstLabels are added to every metric.
	ConstLabels prometheus.Labels

	// Registry registers the metrics. A nil Registry gets a private
	// registry so several servers can coexist in one process.
	Registry prometheus.Registerer
}

// MetricsOption configures MetricsConfig.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metric namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metric subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets labels added to every metric.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithRegistry sets the registerer.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

// Metrics are the Prometheus collectors of one server.
type Metrics struct {
	packetsIn     *prometheus.CounterVec
	packetsOut    *prometheus.CounterVec
	bytesIn       prometheus.Counter
	bytesOut      prometheus.Counter
	drops         *prometheus.CounterVec
	resends       prometheus.Counter
	eventQueued   *prometheus.CounterVec
	circuits      prometheus.Gauge
	teardowns     *prometheus.CounterVec
	handlerPanics prometheus.Counter
}

// NewMetrics creates and registers server metrics.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := MetricsConfig{
		Namespace: "simwire",
		Subsystem: "udp",
	}
	for _, opt := range opts {
		opt(&config)
	}
	if config.Registry == nil {
		config.Registry = prometheus.NewRegistry()
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		packetsIn: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "packets_received_total",
			Help:        "Messages delivered to handlers by message name",
			ConstLabels: config.ConstLabels,
		}, []string{"message"}),

		packetsOut: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "packets_sent_total",
			Help:        "Messages sent over UDP by message name",
			ConstLabels: config.ConstLabels,
		}, []string{"message"}),

		bytesIn: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "received_bytes_total",
			Help:        "Datagram bytes read from the socket",
			ConstLabels: config.ConstLabels,
		}),

		bytesOut: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "sent_bytes_total",
			Help:        "Datagram bytes written to the socket",
			ConstLabels: config.ConstLabels,
		}),

		drops: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "dropped_packets_total",
			Help:        "Inbound datagrams dropped by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		resends: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "resent_packets_total",
			Help:        "Reliable packets resent after an ack timeout",
			ConstLabels: config.ConstLabels,
		}),

		eventQueued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "event_queue_messages_total",
			Help:        "Messages routed to the HTTP event queue by message name",
			ConstLabels: config.ConstLabels,
		}, []string{"message"}),

		circuits: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "circuits",
			Help:        "Number of live circuits",
			ConstLabels: config.ConstLabels,
		}),

		teardowns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "circuit_teardowns_total",
			Help:        "Circuits torn down by reason",
			ConstLabels: config.ConstLabels,
		}, []string{"reason"}),

		handlerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "handler_panics_total",
			Help:        "Inbound handlers that panicked",
			ConstLabels: config.ConstLabels,
		}),
	}
}

func (m *Metrics) drop(reason string) {
	m.drops.WithLabelValues(reason).Inc()
}
