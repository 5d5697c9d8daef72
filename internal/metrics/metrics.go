// Package metrics exposes the service's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts normal-path cache checks by result ("hit"/"miss").
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "periodix_cache_lookups_total",
		Help: "Freshness-gated cache lookups by result.",
	}, []string{"result"})

	// StaleFallbacks counts responses served from stale cache after an
	// upstream failure, by fallback reason.
	StaleFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "periodix_stale_fallbacks_total",
		Help: "Responses served from stale cache, by reason.",
	}, []string{"reason"})

	// UpstreamFailures counts upstream errors by stage ("login"/"fetch").
	UpstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "periodix_upstream_failures_total",
		Help: "Upstream provider failures by stage.",
	}, []string{"stage"})

	// PrunedRecords counts cache records removed by retention pruning.
	PrunedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Name: "periodix_pruned_records_total",
		Help: "Cache records deleted by the retention pruner.",
	})

	// PrefetchRuns counts background adjacent-range prefetch attempts by
	// outcome ("done"/"skipped"/"failed").
	PrefetchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "periodix_prefetch_runs_total",
		Help: "Background prefetch attempts by outcome.",
	}, []string{"outcome"})
)
