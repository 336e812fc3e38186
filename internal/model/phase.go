package model

import "time"

// Phase is a site-wide operational label selecting which pipeline runs.
type Phase string

// UnknownPhase is the reserved fallback label for stale handling when
// EDGE_EVENT_STALE_MODE=unknown. The phase engines take their fallback
// from edge_event.unknown_phase, whose default is this same value; the
// constant itself is not consulted.
const UnknownPhase Phase = "unknown"

// PhaseState is the debounced phase engine's persisted state.
type PhaseState struct {
	Current        Phase
	EnteredAt      time.Time
	Candidate      Phase
	CandidateSince time.Time
}

// SelectorMeta is returned by a PipelineSelector alongside the pipeline
// name. PhaseChanged triggers a phase-change dispatch event; Sleep, if
// present, overrides the registry's default sleep for the next interval.
type SelectorMeta struct {
	PhaseChanged bool
	Sleep        time.Duration
	HasSleep     bool
}
