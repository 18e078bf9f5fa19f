// Package metrics provides Prometheus metrics for the ranking jobs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager holds all Prometheus collectors for the jobs runner.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	// Batch metrics
	unitsProcessed prometheus.Counter
	unitsFailed    prometheus.Counter

	// Job metrics
	jobRuns     *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec

	// Ranking metrics
	rankCorrections    prometheus.Counter
	scoreUpdates       prometheus.Counter
	leaderboardPushes  prometheus.Counter
	calculatorFailures prometheus.Counter
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager with configuration options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "rankforge",
	}

	for _, opt := range opts {
		opt(m)
	}

	reg := prometheus.Registerer(m.registry)
	if m.registry == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	m.unitsProcessed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "batch",
		Name:      "units_processed_total",
		Help:      "Units (users, score chunks) processed successfully.",
	})
	m.unitsFailed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "batch",
		Name:      "units_failed_total",
		Help:      "Units that failed and were deferred to the next run.",
	})
	m.jobRuns = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Job invocations by task name.",
	}, []string{"task"})
	m.jobDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Job wall-clock duration by task name.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"task"})
	m.rankCorrections = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ranking",
		Name:      "rank_corrections_total",
		Help:      "Stored ranks corrected against the leaderboard cache.",
	})
	m.scoreUpdates = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ranking",
		Name:      "score_updates_total",
		Help:      "Score rows updated by classification or recalculation.",
	})
	m.leaderboardPushes = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ranking",
		Name:      "leaderboard_pushes_total",
		Help:      "Entries pushed into the leaderboard cache.",
	})
	m.calculatorFailures = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ranking",
		Name:      "calculator_failures_total",
		Help:      "Scores skipped because the performance calculator failed.",
	})

	return m
}

// Handler exposes the custom registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}

// Package-level helpers against the global manager.

// RecordUnitProcessed counts a successfully processed batch unit.
func RecordUnitProcessed() { globalManager.unitsProcessed.Inc() }

// RecordUnitFailed counts a failed, deferred batch unit.
func RecordUnitFailed() { globalManager.unitsFailed.Inc() }

// RecordJobRun counts an invocation of the named task.
func RecordJobRun(task string) { globalManager.jobRuns.WithLabelValues(task).Inc() }

// ObserveJobDuration records a task's wall-clock duration in seconds.
func ObserveJobDuration(task string, seconds float64) {
	globalManager.jobDuration.WithLabelValues(task).Observe(seconds)
}

// RecordRankCorrection counts a repaired rank desync.
func RecordRankCorrection() { globalManager.rankCorrections.Inc() }

// RecordScoreUpdate counts a score row update.
func RecordScoreUpdate() { globalManager.scoreUpdates.Inc() }

// RecordLeaderboardPush counts an entry pushed into the cache.
func RecordLeaderboardPush() { globalManager.leaderboardPushes.Inc() }

// RecordCalculatorFailure counts a score skipped on calculator error.
func RecordCalculatorFailure() { globalManager.calculatorFailures.Inc() }
