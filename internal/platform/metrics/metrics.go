// Package metrics provides Prometheus instrumentation for the workflow gateway.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "commissionflow"

// Collector owns the gateway registry. A nil Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	// Decisions counts transition requests by action, acting role and outcome.
	Decisions *prometheus.CounterVec
	// Upstream counts calls to the commission backend.
	Upstream *prometheus.CounterVec
	// HTTPRequests counts gateway requests by method, route pattern and status.
	HTTPRequests *prometheus.CounterVec
	// HTTPDuration tracks gateway request latency.
	HTTPDuration *prometheus.HistogramVec
	// Jobs counts maintenance job runs by type and status.
	Jobs *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		Decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_decisions_total",
			Help:      "Total number of transition decisions.",
		}, []string{"action", "role", "outcome"}),
		Upstream: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_requests_total",
			Help:      "Total number of commission backend calls.",
		}, []string{"operation", "result"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),
		Jobs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Total number of maintenance job runs.",
		}, []string{"job", "status"}),
	}
}

func (c *Collector) RecordHTTP(method, route string, status int, duration time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordDecision(action, role, outcome string) {
	if c == nil {
		return
	}
	c.Decisions.WithLabelValues(action, role, outcome).Inc()
}

func (c *Collector) RecordUpstream(operation, result string) {
	if c == nil {
		return
	}
	c.Upstream.WithLabelValues(operation, result).Inc()
}

func (c *Collector) RecordJob(job, status string) {
	if c == nil {
		return
	}
	c.Jobs.WithLabelValues(job, status).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
