// Package model defines the shared data types that flow through the
// integration daemon: edge events, dispatch events, task results and the
// phase vocabulary.
package model

import "errors"

// Sentinel errors shared across packages.
var (
	// ErrUnknownPhase is returned by a PipelineRegistry when asked for a
	// phase that was never registered.
	ErrUnknownPhase = errors.New("phasebridge: unknown phase")

	// ErrUnknownPipeline names the case of a selector naming a pipeline the
	// registry never built. Nothing in this module returns it: Registry.Get
	// is keyed by phase and reports such a lookup as ErrUnknownPhase.
	ErrUnknownPipeline = errors.New("phasebridge: unknown pipeline")

	// ErrAlreadyStarted is returned by EdgeCommAdapter.StartEventIngestion
	// when called more than once on the same adapter instance.
	ErrAlreadyStarted = errors.New("phasebridge: adapter already started")

	// ErrEventTooOld describes an event whose timestamp is older than
	// EDGE_EVENT_MAX_AGE. Store.AddEvent reports that rejection as a false
	// return, not as this error.
	ErrEventTooOld = errors.New("phasebridge: event older than max age")

	// ErrPluginNotFound is returned by an engine registry lookup for a name
	// that was never registered.
	ErrPluginNotFound = errors.New("phasebridge: plugin not found")

	// ErrConfigInvalid marks a fatal, startup-time configuration error
	// (ConfigError in spec terms).
	ErrConfigInvalid = errors.New("phasebridge: invalid configuration")
)
