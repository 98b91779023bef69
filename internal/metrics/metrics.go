// Package metrics holds the agent's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cycles counts finished cycles by outcome (posted, failed, skipped).
	Cycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendpersona_cycles_total",
		Help: "Total number of agent cycles by outcome",
	}, []string{"outcome"})

	// CycleDuration records how long a cycle took end to end.
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "trendpersona_cycle_duration_seconds",
		Help:    "Duration of agent cycles in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	// Posts counts post attempts by origin and outcome.
	Posts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendpersona_posts_total",
		Help: "Total number of post attempts by origin and outcome",
	}, []string{"origin", "outcome"})

	// LLMCalls counts provider calls by kind and outcome.
	LLMCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendpersona_llm_calls_total",
		Help: "Total number of LLM calls by kind and outcome",
	}, []string{"kind", "outcome"})

	// ClassificationCache counts topic cache lookups by result (hit, miss).
	ClassificationCache = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "trendpersona_classification_cache_total",
		Help: "Topic classification cache lookups by result",
	}, []string{"result"})

	// Running is 1 while the scheduled loop is enabled.
	Running = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trendpersona_running",
		Help: "Whether the scheduled loop is enabled",
	})

	// QuotaPausedUntil is the unix time generation resumes, or 0.
	QuotaPausedUntil = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "trendpersona_quota_paused_until_seconds",
		Help: "Unix time at which LLM generation resumes after quota exhaustion",
	})
)

// Outcome labels an error as ok or error
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// SetRunning flips the running gauge
func SetRunning(running bool) {
	if running {
		Running.Set(1)
		return
	}
	Running.Set(0)
}

// SetQuotaPause records the pause deadline; a zero time clears it.
func SetQuotaPause(until time.Time) {
	if until.IsZero() {
		QuotaPausedUntil.Set(0)
		return
	}
	QuotaPausedUntil.Set(float64(until.Unix()))
}
