// Package metrics wraps the Prometheus collectors shared by the server and
// the generation gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Generation sources.
const (
	SourceRemote   = "remote"
	SourceFallback = "fallback"
)

// Collector records generation, quota and gateway telemetry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	generations     *prometheus.CounterVec
	remoteFailures  *prometheus.CounterVec
	quotaConsumed   *prometheus.CounterVec
	quotaDenied     *prometheus.CounterVec
	rollovers       prometheus.Counter
	gatewayRequests *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "reverie"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.generations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "results_total",
			Help:      "Generation results by capability and source (remote or fallback)",
		},
		[]string{"capability", "source"},
	)

	c.remoteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "remote_failures_total",
			Help:      "Remote generation attempts that fell back, by capability and reason",
		},
		[]string{"capability", "reason"},
	)

	c.quotaConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "consumed_total",
			Help:      "Metered uses recorded, by capability and plan",
		},
		[]string{"capability", "plan"},
	)

	c.quotaDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "denied_total",
			Help:      "Actions denied by the daily quota, by capability and plan",
		},
		[]string{"capability", "plan"},
	)

	c.rollovers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "rollovers_total",
			Help:      "Scheduled midnight counter resets",
		},
	)

	c.gatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Gateway requests by route and status code",
		},
		[]string{"route", "status"},
	)

	c.registry.MustRegister(
		c.generations,
		c.remoteFailures,
		c.quotaConsumed,
		c.quotaDenied,
		c.rollovers,
		c.gatewayRequests,
	)

	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// GenerationServed counts one delivered generation result.
func (c *Collector) GenerationServed(capability, source string) {
	if c == nil {
		return
	}
	c.generations.WithLabelValues(capability, source).Inc()
}

// RemoteFailed counts one remote attempt that was replaced by the fallback.
func (c *Collector) RemoteFailed(capability, reason string) {
	if c == nil {
		return
	}
	c.remoteFailures.WithLabelValues(capability, reason).Inc()
}

// QuotaConsumed counts one recorded use.
func (c *Collector) QuotaConsumed(capability, plan string) {
	if c == nil {
		return
	}
	c.quotaConsumed.WithLabelValues(capability, plan).Inc()
}

// QuotaDenied counts one denied action.
func (c *Collector) QuotaDenied(capability, plan string) {
	if c == nil {
		return
	}
	c.quotaDenied.WithLabelValues(capability, plan).Inc()
}

// Rollover counts one scheduled reset run.
func (c *Collector) Rollover() {
	if c == nil {
		return
	}
	c.rollovers.Inc()
}

// GatewayRequest counts one gateway response.
func (c *Collector) GatewayRequest(route, status string) {
	if c == nil {
		return
	}
	c.gatewayRequests.WithLabelValues(route, status).Inc()
}
