// Package metrics exposes Prometheus counters for the session gate and the
// credential lifecycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the registered collectors.  A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	GateDecisionsTotal  *prometheus.CounterVec
	LifecycleEvents     *prometheus.CounterVec
	AccountCacheLookups *prometheus.CounterVec
}

// New creates and registers all collectors on the given registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		GateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_gate_decisions_total",
				Help: "Session gate outcomes by decision and rejection reason",
			},
			[]string{"decision", "reason"},
		),
		LifecycleEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_lifecycle_events_total",
				Help: "Register, login and logout attempts by result",
			},
			[]string{"event", "result"},
		),
		AccountCacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authgate_account_cache_lookups_total",
				Help: "Account cache hits and misses",
			},
			[]string{"result"},
		),
	}
	registry.MustRegister(m.GateDecisionsTotal, m.LifecycleEvents, m.AccountCacheLookups)
	return m
}

// Decision records one gate outcome.  reason is empty for authorized requests.
func (m *Metrics) Decision(decision, reason string) {
	if m == nil {
		return
	}
	m.GateDecisionsTotal.WithLabelValues(decision, reason).Inc()
}

// Lifecycle records a register/login/logout attempt.
func (m *Metrics) Lifecycle(event, result string) {
	if m == nil {
		return
	}
	m.LifecycleEvents.WithLabelValues(event, result).Inc()
}

// CacheLookup records an account cache hit ("hit") or miss ("miss").
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.AccountCacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
