// Package metrics exposes operational counters for the caching subsystem.
// These back the /metrics endpoint; business logic never reads them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the prometheus collectors used across the subsystem.
type Metrics struct {
	CacheLookups     *prometheus.CounterVec
	ProviderFailures *prometheus.CounterVec
	RefreshRuns      *prometheus.CounterVec
	MemoryAge        *prometheus.GaugeVec
}

// New registers all collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resort_cache_lookups_total",
			Help: "Cache lookups by subject and the tier that served them (memory, persistent-store, provider, stale, miss).",
		}, []string{"subject", "tier"}),
		ProviderFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resort_provider_failures_total",
			Help: "Failed provider attempts by provider name and failure kind.",
		}, []string{"provider", "kind"}),
		RefreshRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resort_refresh_runs_total",
			Help: "Scheduled refresh runs by outcome (ok, failed, skipped-season, skipped-interval).",
		}, []string{"outcome"}),
		MemoryAge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resort_cache_memory_age_seconds",
			Help: "Age of the in-memory snapshot per subject at last lookup.",
		}, []string{"subject"}),
	}
}

// Lookup records a cache lookup outcome. Nil-safe so the coordinator can run
// without metrics in tests.
func (m *Metrics) Lookup(subject, tier string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(subject, tier).Inc()
}

func (m *Metrics) ProviderFailure(provider, kind string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(provider, kind).Inc()
}

func (m *Metrics) RefreshRun(outcome string) {
	if m == nil {
		return
	}
	m.RefreshRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveMemoryAge(subject string, seconds float64) {
	if m == nil {
		return
	}
	m.MemoryAge.WithLabelValues(subject).Set(seconds)
}
