// Package metrics exposes Prometheus instrumentation for pollen-relay.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pollenlabs/pollen-relay/internal/keypool"
)

const namespace = "pollen_relay"

// Metrics holds every collector the relay exports, on a private registry so
// tests can build isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	upstreamTotal   *prometheus.CounterVec
	upstreamLatency prometheus.Histogram
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
}

// New creates a Metrics with all collectors registered. Pool gauges are
// sampled lazily from the manager at scrape time.
func New(pool *keypool.Manager) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Inbound prompt requests by result.",
		}, []string{"result"}),
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_attempts_total",
			Help:      "Upstream attempts by outcome class.",
		}, []string{"class"}),
		upstreamLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_seconds",
			Help:      "Upstream round trip latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Prompt responses served from cache.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Prompt requests that missed the cache.",
		}),
	}

	registry.MustRegister(m.requestsTotal, m.upstreamTotal, m.upstreamLatency, m.cacheHits, m.cacheMisses)

	if pool != nil {
		registerPoolGauges(registry, pool)
	}

	return m
}

func registerPoolGauges(registry *prometheus.Registry, pool *keypool.Manager) {
	gauge := func(name, help string, value func(keypool.PoolStats) int) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, func() float64 {
			return float64(value(pool.Stats()))
		})
	}

	registry.MustRegister(
		gauge("pool_keys_total", "Configured keys in the pool.",
			func(s keypool.PoolStats) int { return s.Total }),
		gauge("pool_keys_available", "Keys currently selectable.",
			func(s keypool.PoolStats) int { return s.Available }),
		gauge("pool_keys_cooling_down", "Keys in cooldown.",
			func(s keypool.PoolStats) int { return s.CoolingDown }),
		gauge("pool_keys_disabled", "Keys disabled pending operator action.",
			func(s keypool.PoolStats) int { return s.Disabled }),
		gauge("pool_leases_live", "Leases acquired but not yet reported.",
			func(s keypool.PoolStats) int { return s.LiveLeases }),
	)
}

// RequestServed counts a completed inbound request.
// Result is one of "ok", "cached", "unavailable", "rejected".
func (m *Metrics) RequestServed(result string) {
	m.requestsTotal.WithLabelValues(result).Inc()
}

// ObserveUpstream records one upstream attempt.
func (m *Metrics) ObserveUpstream(class keypool.Class, elapsed time.Duration) {
	m.upstreamTotal.WithLabelValues(string(class)).Inc()
	m.upstreamLatency.Observe(elapsed.Seconds())
}

// CacheHit counts a cache hit.
func (m *Metrics) CacheHit() { m.cacheHits.Inc() }

// CacheMiss counts a cache miss.
func (m *Metrics) CacheMiss() { m.cacheMisses.Inc() }

// Handler returns the scrape endpoint handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
