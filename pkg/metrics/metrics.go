// Package metrics records store, persistence and HTTP activity as
// Prometheus metrics.
//
// A Collector implements store.Observer and persist.Observer, so the same
// value can be handed to every store:
//
//	m := metrics.New(metrics.WithRegistry(reg))
//	counter := store.New(Counter{}, store.WithName("counter"), store.WithObserver(m))
//
// Metrics collected (namespace "vstore" by default):
//   - store_transitions_total: delivered transitions by store
//   - store_subscribers: subscribers notified by the last transition, by store
//   - store_callback_panics_total: recovered hook and subscriber panics
//   - persist_saves_total: successful writes by entry
//   - persist_errors_total: failed persistence steps by entry and op
//   - persist_hydrations_total: hydration attempts by entry and result
//   - http_requests_total: HTTP requests by route, method and status
//   - http_request_duration_seconds: HTTP latency by route
//   - websocket_connections: open render-binding connections
//   - websocket_errors_total: WebSocket errors by type
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures a Collector.
type Config struct {
	// Namespace is the metrics namespace (default: "vstore").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "vstore",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector holds the vstore metrics.
type Collector struct {
	registry prometheus.Registerer

	transitions    *prometheus.CounterVec
	subscribers    *prometheus.GaugeVec
	panics         *prometheus.CounterVec
	saves          *prometheus.CounterVec
	persistErrors  *prometheus.CounterVec
	hydrations     *prometheus.CounterVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	wsConnections  prometheus.Gauge
	wsErrors       *prometheus.CounterVec
}

// New registers the vstore metrics and returns their collector.
// Registering twice on the same registry panics, as with promauto.
func New(opts ...Option) *Collector {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	return &Collector{
		registry: config.Registry,

		transitions: counter("store_transitions_total",
			"Total number of delivered state transitions", "store"),

		subscribers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "store_subscribers",
			Help:        "Subscribers notified by the most recent transition",
			ConstLabels: config.ConstLabels,
		}, []string{"store"}),

		panics: counter("store_callback_panics_total",
			"Total number of recovered hook and subscriber panics", "store"),

		saves: counter("persist_saves_total",
			"Total number of persisted writes", "entry"),

		persistErrors: counter("persist_errors_total",
			"Total number of failed persistence steps", "entry", "op"),

		hydrations: counter("persist_hydrations_total",
			"Total number of hydration attempts", "entry", "result"),

		requests: counter("http_requests_total",
			"Total number of HTTP requests", "route", "method", "status"),

		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"route"}),

		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "websocket_connections",
			Help:        "Number of open render-binding WebSocket connections",
			ConstLabels: config.ConstLabels,
		}),

		wsErrors: counter("websocket_errors_total",
			"Total WebSocket errors by type", "type"),
	}
}

// StateChanged implements store.Observer.
func (c *Collector) StateChanged(store string, subscribers int) {
	c.transitions.WithLabelValues(store).Inc()
	c.subscribers.WithLabelValues(store).Set(float64(subscribers))
}

// CallbackPanicked implements store.Observer.
func (c *Collector) CallbackPanicked(store string) {
	c.panics.WithLabelValues(store).Inc()
}

// Saved implements persist.Observer.
func (c *Collector) Saved(entry string) {
	c.saves.WithLabelValues(entry).Inc()
}

// Hydrated implements persist.Observer.
func (c *Collector) Hydrated(entry string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	c.hydrations.WithLabelValues(entry, result).Inc()
}

// Failed implements persist.Observer.
func (c *Collector) Failed(entry, op string) {
	c.persistErrors.WithLabelValues(entry, op).Inc()
}

// RecordWebSocketOpen records a new render-binding connection.
func (c *Collector) RecordWebSocketOpen() {
	c.wsConnections.Inc()
}

// RecordWebSocketClose records a closed render-binding connection.
func (c *Collector) RecordWebSocketClose() {
	c.wsConnections.Dec()
}

// RecordWebSocketError records a WebSocket error.
func (c *Collector) RecordWebSocketError(errorType string) {
	c.wsErrors.WithLabelValues(errorType).Inc()
}

// Handler serves the metrics of the collector's registry.
func (c *Collector) Handler() http.Handler {
	if g, ok := c.registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}
