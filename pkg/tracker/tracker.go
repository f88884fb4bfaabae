package tracker

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exportmap"

// Tracker tracks usage statistics per provider and exposes them, together
// with domain counters, as Prometheus metrics.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*ProviderStats

	registry     *prometheus.Registry
	cacheResults *prometheus.CounterVec
	apiResults   *prometheus.CounterVec
	fetches      *prometheus.CounterVec
	restorations *prometheus.CounterVec
	contacts     *prometheus.CounterVec
	titles       *prometheus.CounterVec
	sessions     prometheus.Gauge
}

// ProviderStats holds metrics for a specific provider.
// Fields are accessed atomically.
type ProviderStats struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	APISuccess    int64 `json:"api_success"`
	APIFailures   int64 `json:"api_failures"`
	APIZeroResult int64 `json:"api_zero_result"`
}

// New creates a new Tracker with its own registry.
func New() *Tracker {
	reg := prometheus.NewRegistry()
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		c := prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
		reg.MustRegister(c)
		return c
	}

	t := &Tracker{
		stats:        make(map[string]*ProviderStats),
		registry:     reg,
		cacheResults: counter("cache_requests_total", "Request cache lookups by provider and result.", "provider", "result"),
		apiResults:   counter("api_requests_total", "Outbound API requests by provider and result.", "provider", "result"),
		fetches:      counter("dataset_loads_total", "Dataset loads by origin (remote, fallback).", "origin"),
		restorations: counter("return_state_total", "Return-state outcomes (restored, abandoned, expired, corrupt, absent).", "outcome"),
		contacts:     counter("contact_submissions_total", "Contact submissions by outcome.", "outcome"),
		titles:       counter("source_titles_total", "Bibliography title lookups by result (fetched, cached, fallback).", "result"),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_sessions", Help: "Browser sessions currently held in memory.",
		}),
	}
	reg.MustRegister(t.sessions)
	return t
}

// Registry exposes the underlying registry for tests and extra collectors.
func (t *Tracker) Registry() *prometheus.Registry {
	return t.registry
}

// Handler serves the registry in the Prometheus text format.
func (t *Tracker) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// getStats returns the stats object for a provider, creating it if needed.
func (t *Tracker) getStats(provider string) *ProviderStats {
	t.mu.RLock()
	s, ok := t.stats[provider]
	t.mu.RUnlock()
	if ok {
		return s
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Double check
	if s, ok = t.stats[provider]; ok {
		return s
	}
	s = &ProviderStats{}
	t.stats[provider] = s
	return s
}

// TrackCacheHit increments the cache hit counter.
func (t *Tracker) TrackCacheHit(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheHits, 1)
	t.cacheResults.WithLabelValues(provider, "hit").Inc()
}

func (t *Tracker) TrackCacheMiss(provider string) {
	atomic.AddInt64(&t.getStats(provider).CacheMisses, 1)
	t.cacheResults.WithLabelValues(provider, "miss").Inc()
}

func (t *Tracker) TrackAPISuccess(provider string) {
	atomic.AddInt64(&t.getStats(provider).APISuccess, 1)
	t.apiResults.WithLabelValues(provider, "success").Inc()
}

func (t *Tracker) TrackAPIFailure(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIFailures, 1)
	t.apiResults.WithLabelValues(provider, "failure").Inc()
}

func (t *Tracker) TrackAPIZero(provider string) {
	atomic.AddInt64(&t.getStats(provider).APIZeroResult, 1)
	t.apiResults.WithLabelValues(provider, "zero").Inc()
}

// TrackDatasetLoad counts a dataset load by origin.
func (t *Tracker) TrackDatasetLoad(origin string) {
	t.fetches.WithLabelValues(origin).Inc()
}

// TrackRestoration counts one return-state outcome.
func (t *Tracker) TrackRestoration(outcome string) {
	t.restorations.WithLabelValues(outcome).Inc()
}

// TrackContact counts one contact submission outcome.
func (t *Tracker) TrackContact(outcome string) {
	t.contacts.WithLabelValues(outcome).Inc()
}

// TrackTitle counts one bibliography title lookup.
func (t *Tracker) TrackTitle(result string) {
	t.titles.WithLabelValues(result).Inc()
}

// SetSessions records the number of live sessions.
func (t *Tracker) SetSessions(n int) {
	t.sessions.Set(float64(n))
}

// Snapshot returns a copy of the current per-provider stats.
func (t *Tracker) Snapshot() map[string]ProviderStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]ProviderStats)
	for k, v := range t.stats {
		result[k] = ProviderStats{
			CacheHits:     atomic.LoadInt64(&v.CacheHits),
			CacheMisses:   atomic.LoadInt64(&v.CacheMisses),
			APISuccess:    atomic.LoadInt64(&v.APISuccess),
			APIFailures:   atomic.LoadInt64(&v.APIFailures),
			APIZeroResult: atomic.LoadInt64(&v.APIZeroResult),
		}
	}
	return result
}
