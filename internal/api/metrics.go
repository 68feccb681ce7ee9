package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FocuswithJustin/VerseExplorer/internal/session"
)

// Metrics holds the server's Prometheus collectors on a private registry.
type Metrics struct {
	registry       *prometheus.Registry
	searches       *prometheus.CounterVec
	searchDuration prometheus.Histogram
	noteEvents     *prometheus.CounterVec
	wsClients      prometheus.Gauge
}

// NewMetrics registers the collectors for lib.
func NewMetrics(lib *session.Library) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verse_explorer",
			Name:      "searches_total",
			Help:      "Searches served, by origin and cache outcome.",
		}, []string{"origin", "cache"}),
		searchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "verse_explorer",
			Name:      "search_duration_seconds",
			Help:      "Time spent running uncached searches.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		noteEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verse_explorer",
			Name:      "note_events_total",
			Help:      "Completed notes writes, by event.",
		}, []string{"event"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "verse_explorer",
			Name:      "websocket_clients",
			Help:      "Connected WebSocket clients.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.searches,
		m.searchDuration,
		m.noteEvents,
		m.wsClients,
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "verse_explorer",
			Name:      "notes",
			Help:      "Notes currently held in the overlay.",
		}, func() float64 { return float64(len(lib.Notes())) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "verse_explorer",
			Name:      "matcher_cache_hits_total",
			Help:      "Compiled keyword matcher cache hits.",
		}, func() float64 { return float64(lib.MatcherStats().Hits) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "verse_explorer",
			Name:      "matcher_cache_misses_total",
			Help:      "Compiled keyword matcher cache misses.",
		}, func() float64 { return float64(lib.MatcherStats().Misses) }),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observeSearch(origin string, cached bool, took time.Duration) {
	outcome := "miss"
	if cached {
		outcome = "hit"
	} else {
		m.searchDuration.Observe(took.Seconds())
	}
	m.searches.WithLabelValues(origin, outcome).Inc()
}

func (m *Metrics) observeNoteEvent(event string) {
	m.noteEvents.WithLabelValues(event).Inc()
}
