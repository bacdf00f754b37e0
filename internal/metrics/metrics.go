// Package metrics provides Prometheus metrics for the session event API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithHistogramBuckets sets custom histogram buckets for latency metrics.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// Manager owns a private registry so only service metrics are exposed.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	storeOps        *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	eventsIngested prometheus.Counter
	eventsSkipped  prometheus.Counter
	bucketReady    prometheus.Gauge
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "session_events",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status code",
	}, []string{"route", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route and method",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})

	m.storeOps = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Object store calls by operation and result",
	}, []string{"op", "result"})

	m.storeOpDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Object store call latency by operation",
		Buckets:   m.histogramBuckets,
	}, []string{"op"})

	m.eventsIngested = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_ingested_total",
		Help:      "Events written to the object store",
	})

	m.eventsSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_skipped_total",
		Help:      "Stored events that could not be read or decoded while listing a session",
	})

	m.bucketReady = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "bucket_ready",
		Help:      "1 when the event bucket was reachable at the last check",
	})

	return m
}

func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// ObserveStoreOp satisfies store.Observer.
func (m *Manager) ObserveStoreOp(op string, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.storeOps.WithLabelValues(op, result).Inc()
	m.storeOpDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Manager) EventIngested() { m.eventsIngested.Inc() }

func (m *Manager) EventSkipped() { m.eventsSkipped.Inc() }

func (m *Manager) SetBucketReady(ready bool) {
	if ready {
		m.bucketReady.Set(1)
		return
	}
	m.bucketReady.Set(0)
}
