// Package comm implements the transport-agnostic edge communication
// adapter: ingestion of edge events and publish of the committed phase.
package comm

import (
	"errors"
	"time"

	"sitebridge.dev/phasebridge/internal/model"
)

// ErrAlreadyStarted is returned by StartEventIngestion when called more
// than once on the same adapter instance.
var ErrAlreadyStarted = model.ErrAlreadyStarted

// EventHandler is invoked exactly once per successfully decoded inbound
// message, and reports whether the store accepted it. It runs on a
// transport-owned goroutine (HTTP handler goroutine, MQTT client
// callback) and must not block for long.
type EventHandler func(model.EdgeEvent) bool

// Adapter is implemented by HttpEdgeCommAdapter and MqttEdgeCommAdapter. A
// single instance may be shared between the ingestion role and the phase
// publish role (the PHASE_PUBLISH_BACKEND default), so Stop must be
// idempotent and safe to call once regardless of how many roles used it.
type Adapter interface {
	// StartEventIngestion begins accepting inbound edge events, invoking
	// on_event once per accepted message. Returns ErrAlreadyStarted if
	// already running.
	StartEventIngestion(onEvent EventHandler) error

	// PublishPhase publishes the current phase. Returns true on an
	// accepted send, false on transient failure. Never panics.
	PublishPhase(phase model.Phase, ts time.Time) bool

	// Stop idempotently releases transport resources.
	Stop() error
}

var errDecodeFailed = errors.New("phasebridge: edge event decode failed")
