// Package metrics holds the Prometheus collectors of the curator.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "curator_runs_finished_total",
	Help: "Total number of agent runs that reached a terminal status",
}, []string{"status"})

var RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "curator_run_duration_seconds",
	Help:    "Wall time of agent runs",
	Buckets: prometheus.ExponentialBuckets(1, 2, 12),
})

var CandidatesFound = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "curator_candidates_found_total",
	Help: "Total number of candidates created by search providers",
}, []string{"source"})

var CandidatesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "curator_candidates_rejected_total",
	Help: "Total number of candidates rejected, by phase",
}, []string{"phase"})

var CandidatesVetted = promauto.NewCounter(prometheus.CounterOpts{
	Name: "curator_candidates_vetted_total",
	Help: "Total number of candidates that passed rule vetting",
})

var CandidatesAIScored = promauto.NewCounter(prometheus.CounterOpts{
	Name: "curator_candidates_ai_scored_total",
	Help: "Total number of candidates that passed AI vetting",
})

var QualityFallbacks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "curator_quality_fallbacks_total",
	Help: "Total number of quality analyses that fell back to the default score",
})

var ArtifactsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "curator_artifacts_created_total",
	Help: "Total number of artifacts published, by approval state",
}, []string{"approval"})

var ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "curator_provider_errors_total",
	Help: "Total number of search provider failures",
}, []string{"provider"})

var SchedulerDispatched = promauto.NewCounter(prometheus.CounterOpts{
	Name: "curator_scheduler_dispatched_total",
	Help: "Total number of agent runs dispatched by scheduler ticks",
})

var SchedulerClaimsLost = promauto.NewCounter(prometheus.CounterOpts{
	Name: "curator_scheduler_claims_lost_total",
	Help: "Total number of due agents skipped because another tick claimed them",
})

var JobsEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "curator_jobs_enqueued_total",
	Help: "Total number of jobs added to the worker pool",
}, []string{"pool"})

var JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "curator_jobs_processed_total",
	Help: "Total number of jobs processed by the worker pool, by result",
}, []string{"pool", "result"})

var JobsRetried = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "curator_jobs_retried_total",
	Help: "Total number of job retries scheduled",
}, []string{"pool"})

var JobsExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "curator_jobs_exhausted_total",
	Help: "Total number of jobs that failed on every attempt",
}, []string{"pool"})

var JobsQueued = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "curator_jobs_queued",
	Help: "Number of jobs waiting for a worker",
}, []string{"pool"})

var WorkersActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "curator_workers_active",
	Help: "Number of workers currently running",
}, []string{"pool"})

var FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "curator_feed_fetches_total",
	Help: "Total number of feed fetches, by result",
}, []string{"result"})

var FeedItemsIngested = promauto.NewCounter(prometheus.CounterOpts{
	Name: "curator_feed_items_ingested_total",
	Help: "Total number of new feed items stored",
})
