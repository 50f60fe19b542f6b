package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the medical research service.
// Metrics are organized by subsystem: sessions, searches, deduplication, and
// the vocabulary cache. All counters and histograms are registered via
// promauto for automatic registration with the default Prometheus registry.
type Metrics struct {
	// SessionsStarted counts the total number of research sessions initiated.
	SessionsStarted prometheus.Counter

	// SessionsCompleted counts the total number of sessions that finished successfully.
	SessionsCompleted prometheus.Counter

	// SessionsFailed counts the total number of sessions that ended in failure.
	SessionsFailed prometheus.Counter

	// SessionsCancelled counts the total number of sessions cancelled by user or system.
	SessionsCancelled prometheus.Counter

	// SessionDuration observes the end-to-end duration of sessions in seconds.
	SessionDuration prometheus.Histogram

	// PhaseTransitions counts session phase transitions, labeled by from and to phase.
	PhaseTransitions *prometheus.CounterVec

	// SearchesStarted counts searches initiated, labeled by literature source.
	SearchesStarted *prometheus.CounterVec

	// SearchesCompleted counts successful searches, labeled by literature source.
	SearchesCompleted *prometheus.CounterVec

	// SearchesFailed counts failed searches, labeled by literature source.
	SearchesFailed *prometheus.CounterVec

	// SearchDuration observes search duration in seconds, labeled by literature source.
	SearchDuration *prometheus.HistogramVec

	// ResultsPerSearch observes the distribution of results returned per search, labeled by source.
	ResultsPerSearch *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from literature sources, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// ResultsDiscovered counts results discovered, labeled by literature source.
	ResultsDiscovered *prometheus.CounterVec

	// DuplicatesMerged counts cross-source duplicate records merged during ranking.
	DuplicatesMerged prometheus.Counter

	// ReferencesRanked observes the size of the final ranked reference list per session.
	ReferencesRanked prometheus.Histogram

	// MeshCacheHits counts vocabulary lookups served from the cache.
	MeshCacheHits prometheus.Counter

	// MeshCacheMisses counts vocabulary lookups that required an external fetch.
	MeshCacheMisses prometheus.Counter

	// MeshFetchesFailed counts external vocabulary fetches that failed.
	MeshFetchesFailed prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Sessions
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Total number of research sessions started",
		}),
		SessionsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_completed_total",
			Help:      "Total number of research sessions completed successfully",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_failed_total",
			Help:      "Total number of research sessions that failed",
		}),
		SessionsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_cancelled_total",
			Help:      "Total number of research sessions cancelled",
		}),
		SessionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Duration of research sessions in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		PhaseTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phase_transitions_total",
			Help:      "Total number of session phase transitions",
		}, []string{"from", "to"}),

		// Searches
		SearchesStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_started_total",
			Help:      "Total number of literature searches started by source",
		}, []string{"source"}),
		SearchesCompleted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_completed_total",
			Help:      "Total number of literature searches completed by source",
		}, []string{"source"}),
		SearchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_failed_total",
			Help:      "Total number of literature searches that failed by source",
		}, []string{"source"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of literature searches in seconds by source",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"source"}),
		ResultsPerSearch: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "results_per_search",
			Help:      "Number of results returned per search by source",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 200},
		}, []string{"source"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from literature sources",
		}, []string{"source"}),
		ResultsDiscovered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "results_discovered_total",
			Help:      "Total number of results discovered by source",
		}, []string{"source"}),

		// Deduplication
		DuplicatesMerged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "duplicates_merged_total",
			Help:      "Total number of cross-source duplicate records merged",
		}),
		ReferencesRanked: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "references_ranked",
			Help:      "Number of ranked references per session",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 200, 500},
		}),

		// Vocabulary cache
		MeshCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mesh_cache_hits_total",
			Help:      "Total number of vocabulary lookups served from the cache",
		}),
		MeshCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mesh_cache_misses_total",
			Help:      "Total number of vocabulary lookups requiring an external fetch",
		}),
		MeshFetchesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mesh_fetches_failed_total",
			Help:      "Total number of failed external vocabulary fetches",
		}),
	}
}

// RecordSessionStarted records that a session has started.
func (m *Metrics) RecordSessionStarted() {
	m.SessionsStarted.Inc()
}

// RecordSessionCompleted records that a session has completed.
func (m *Metrics) RecordSessionCompleted(durationSeconds float64) {
	m.SessionsCompleted.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionFailed records that a session has failed.
func (m *Metrics) RecordSessionFailed(durationSeconds float64) {
	m.SessionsFailed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordSessionCancelled records that a session has been cancelled.
func (m *Metrics) RecordSessionCancelled() {
	m.SessionsCancelled.Inc()
}

// RecordPhaseTransition records a session phase transition.
func (m *Metrics) RecordPhaseTransition(from, to string) {
	m.PhaseTransitions.WithLabelValues(from, to).Inc()
}

// RecordSearchStarted records that a search has started.
func (m *Metrics) RecordSearchStarted(source string) {
	m.SearchesStarted.WithLabelValues(source).Inc()
}

// RecordSearchCompleted records that a search has completed.
func (m *Metrics) RecordSearchCompleted(source string, resultCount int, durationSeconds float64) {
	m.SearchesCompleted.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
	m.ResultsPerSearch.WithLabelValues(source).Observe(float64(resultCount))
	m.ResultsDiscovered.WithLabelValues(source).Add(float64(resultCount))
}

// RecordSearchFailed records that a search has failed.
func (m *Metrics) RecordSearchFailed(source string, durationSeconds float64) {
	m.SearchesFailed.WithLabelValues(source).Inc()
	m.SearchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSourceRateLimited records a rate limit response from a source.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordDuplicatesMerged records duplicate records merged during ranking.
func (m *Metrics) RecordDuplicatesMerged(count int) {
	m.DuplicatesMerged.Add(float64(count))
}

// RecordReferencesRanked records the size of a session's ranked reference list.
func (m *Metrics) RecordReferencesRanked(count int) {
	m.ReferencesRanked.Observe(float64(count))
}

// RecordMeshCacheHit records a vocabulary lookup served from the cache.
func (m *Metrics) RecordMeshCacheHit() {
	m.MeshCacheHits.Inc()
}

// RecordMeshCacheMiss records a vocabulary lookup requiring an external fetch.
func (m *Metrics) RecordMeshCacheMiss() {
	m.MeshCacheMisses.Inc()
}

// RecordMeshFetchFailed records a failed external vocabulary fetch.
func (m *Metrics) RecordMeshFetchFailed() {
	m.MeshFetchesFailed.Inc()
}
