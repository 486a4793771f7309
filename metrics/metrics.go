// Package metrics exposes Prometheus instrumentation for the analysis
// pipeline. Collectors are package-level and registered on import via
// promauto; the surrounding system decides whether to serve them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regexguard_analyses_total",
			Help: "Total number of pattern analyses",
		},
		[]string{"dialect", "profile", "outcome"},
	)

	FindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regexguard_findings_total",
			Help: "Total number of vulnerability findings by class and severity",
		},
		[]string{"class", "severity"},
	)

	AnalysisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "regexguard_analysis_duration_seconds",
			Help:    "Time taken to analyze one pattern end to end",
			Buckets: prometheus.DefBuckets,
		},
	)

	EquivalenceDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "regexguard_equivalence_duration_seconds",
			Help:    "Time taken by one bounded language comparison",
			Buckets: prometheus.DefBuckets,
		},
	)

	EquivalenceChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regexguard_equivalence_checks_total",
			Help: "Total number of bounded language comparisons by verdict",
		},
		[]string{"verdict"},
	)

	RewriteCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "regexguard_rewrite_candidates_total",
			Help: "Total number of rewrite candidates by acceptance",
		},
		[]string{"strategy", "accepted"},
	)

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regexguard_cache_hits_total",
			Help: "Total number of report cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regexguard_cache_misses_total",
			Help: "Total number of report cache misses",
		},
	)
)
