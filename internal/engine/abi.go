// Package engine defines the swappable engine ABI (the interfaces behind
// each pipeline task and workflow decision point) and a compile-time
// registry of named factories, replacing the source system's dynamic
// module:Class plugin loader with fail-fast startup resolution.
package engine

import (
	"time"

	"sitebridge.dev/phasebridge/internal/model"
)

// IngestionEngine produces the per-tick snapshot of latest-per-camera
// events consumed by IngestionTask. The default implementation reads
// straight from the EdgeEventStore; a plugin may transform or filter.
type IngestionEngine interface {
	Snapshot(now time.Time) []model.EdgeEvent
}

// RuleEngine evaluates a tracking/format payload and returns zero or more
// DispatchEvents to enqueue.
type RuleEngine interface {
	Evaluate(now time.Time, rulesPayload map[string]any) []model.DispatchEvent
}

// FormatStrategy converts MC-MOT tracking output into the rules_payload
// shape RuleEngine expects. Only invoked when FORMAT_TASK_ENABLED.
type FormatStrategy interface {
	Convert(globalObjects, localObjects []map[string]any) map[string]any
}

// EventDispatchEngine routes a drained batch of DispatchEvents to the
// handlers named on each event, isolating per-handler failures.
type EventDispatchEngine interface {
	Dispatch(now time.Time, events []model.DispatchEvent)
}

// PipelineSelector resolves the pipeline name to run for the current
// phase, optionally overriding sleep or flagging a phase change.
type PipelineSelector interface {
	Select(phase model.Phase, ctxScratch map[string]any) (pipelineName string, meta model.SelectorMeta)
}

// SchedulerEngine answers "given the current world signal, what is the
// raw candidate phase?" with no debounce or override logic of its own.
type SchedulerEngine interface {
	CandidatePhase(now time.Time) model.Phase
}

// PhaseEngine wraps a SchedulerEngine, applying debounce and/or stale
// overrides, and is the sole authority on the committed phase.
type PhaseEngine interface {
	CurrentPhase(now time.Time, store StaleSource) model.Phase
}

// StaleSource is the subset of EdgeEventStore a PhaseEngine needs to
// evaluate staleness, kept narrow so engine does not import store.
type StaleSource interface {
	LastEventAge(now time.Time) time.Duration
}
