// Package metrics declares the daemon's Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EdgeEventsIngestedTotal counts accepted edge events per camera and
	// transport (http/mqtt).
	EdgeEventsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phasebridge_edge_events_ingested_total",
			Help: "Total number of edge events accepted into the store",
		},
		[]string{"camera_id", "transport"},
	)

	// EdgeEventsRejectedTotal counts edge events rejected at ingest time,
	// bucketed by reason (read_error, decode_error, store_rejected).
	EdgeEventsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phasebridge_edge_events_rejected_total",
			Help: "Total number of edge events rejected at ingestion",
		},
		[]string{"transport", "reason"},
	)

	// PhaseTransitionsTotal counts committed phase changes.
	PhaseTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phasebridge_phase_transitions_total",
			Help: "Total number of committed phase transitions",
		},
		[]string{"from", "to"},
	)

	// CurrentPhase surfaces the active phase as a gauge-per-label (1 for
	// the active phase, 0 otherwise).
	CurrentPhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phasebridge_current_phase",
			Help: "1 for the currently active phase, 0 for all others",
		},
		[]string{"phase"},
	)

	// TickLatencySeconds measures one workflow loop tick's wall time.
	TickLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phasebridge_tick_latency_seconds",
			Help:    "Latency of a single workflow loop tick",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"pipeline"},
	)

	// TaskErrorsTotal counts errors raised by a BaseTask.Run call.
	TaskErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phasebridge_task_errors_total",
			Help: "Total number of task execution errors",
		},
		[]string{"task", "pipeline"},
	)

	// DispatchErrorsTotal counts handler delivery failures, including
	// retries, bucketed by handler and whether the failure was the final
	// (post-retry) drop.
	DispatchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phasebridge_dispatch_errors_total",
			Help: "Total number of dispatch handler delivery failures",
		},
		[]string{"handler", "outcome"},
	)

	// DispatchQueueDepth tracks the number of DispatchEvents still queued
	// after a tick's pipeline has run, i.e. events EventDispatchTask did not
	// drain (for example because the pipeline short-circuited before it).
	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "phasebridge_dispatch_queue_depth",
			Help: "Number of dispatch events pending drain at end of tick",
		},
	)

	// StaleWarningsTotal counts EDGE_EVENT_STALE_SECONDS trips, bucketed by
	// the configured stale mode.
	StaleWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phasebridge_stale_warnings_total",
			Help: "Total number of store-staleness detections",
		},
		[]string{"mode"},
	)

	// PipelineSleepSeconds reports the sleep interval selected for the next
	// tick: the pipeline result's sleep, else the selector's, else the
	// registry default, else the loop interval.
	PipelineSleepSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "phasebridge_pipeline_sleep_seconds",
			Help: "Sleep duration selected for the next workflow tick",
		},
	)

	// StoreSize tracks the number of cameras currently tracked by the
	// EdgeEventStore.
	StoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "phasebridge_store_size",
			Help: "Current number of cameras tracked in the edge event store",
		},
	)
)
