package phase

import (
	"sync"
	"time"

	"sitebridge.dev/phasebridge/internal/engine"
	"sitebridge.dev/phasebridge/internal/logging"
	"sitebridge.dev/phasebridge/internal/metrics"
	"sitebridge.dev/phasebridge/internal/model"
)

func init() {
	engine.RegisterPhaseEngine("time_based", func() engine.PhaseEngine {
		return &TimeBasedPhaseEngine{}
	})
	engine.RegisterPhaseEngine("debounced", func() engine.PhaseEngine {
		return &DebouncedPhaseEngine{}
	})
}

// StaleMode selects the behavior a PhaseEngine falls back to when the
// store has not seen an event within StaleAfter.
type StaleMode string

const (
	StaleModeFreeze  StaleMode = "freeze"
	StaleModeUnknown StaleMode = "unknown"
)

// TimeBasedPhaseEngine passes the scheduler's candidate straight through,
// with no debounce, but still honors stale handling.
type TimeBasedPhaseEngine struct {
	Scheduler engine.SchedulerEngine

	StaleAfter   time.Duration
	StaleMode    StaleMode
	UnknownPhase model.Phase

	mu        sync.Mutex
	committed model.Phase
	hasPhase  bool
}

func (e *TimeBasedPhaseEngine) CurrentPhase(now time.Time, store engine.StaleSource) model.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()

	// In freeze mode with nothing committed yet, there is nothing to hold,
	// so the scheduler's candidate passes through.
	if stale, forced := evaluateStale(now, store, e.StaleAfter, e.StaleMode, e.UnknownPhase, e.hasPhase, e.committed); stale && (e.StaleMode == StaleModeUnknown || e.hasPhase) {
		if e.StaleMode == StaleModeUnknown {
			e.setLocked(forced)
		}
		return e.resolveLocked(forced)
	}

	candidate := e.Scheduler.CandidatePhase(now)
	e.setLocked(candidate)
	return candidate
}

func (e *TimeBasedPhaseEngine) setLocked(p model.Phase) {
	if !e.hasPhase || e.committed != p {
		recordTransition(e.committed, p, e.hasPhase)
	}
	e.committed = p
	e.hasPhase = true
}

func (e *TimeBasedPhaseEngine) resolveLocked(frozenOrUnknown model.Phase) model.Phase {
	if e.StaleMode == StaleModeUnknown {
		return e.committed
	}
	// freeze: return the last committed phase, or the forced fallback if
	// nothing has ever committed.
	if e.hasPhase {
		return e.committed
	}
	return frozenOrUnknown
}

// DebouncedPhaseEngine requires the scheduler's candidate phase to persist
// PHASE_STABLE_SECONDS before committing, per spec.md §4.3.
type DebouncedPhaseEngine struct {
	Scheduler     engine.SchedulerEngine
	StableSeconds time.Duration

	StaleAfter   time.Duration
	StaleMode    StaleMode
	UnknownPhase model.Phase

	mu    sync.Mutex
	state model.PhaseState
	has   bool
}

func (e *DebouncedPhaseEngine) CurrentPhase(now time.Time, store engine.StaleSource) model.Phase {
	e.mu.Lock()
	defer e.mu.Unlock()

	if stale, forced := evaluateStale(now, store, e.StaleAfter, e.StaleMode, e.UnknownPhase, e.has, e.state.Current); stale {
		if e.StaleMode == StaleModeUnknown {
			e.commitLocked(forced, now)
			return e.state.Current
		}
		// freeze: hold the committed phase; with nothing committed yet,
		// fall through to the scheduler.
		if e.has {
			return e.state.Current
		}
	}

	candidate := e.Scheduler.CandidatePhase(now)

	switch {
	case e.has && candidate == e.state.Current:
		e.state.Candidate = ""
		e.state.CandidateSince = time.Time{}
	case e.state.Candidate != candidate:
		e.state.Candidate = candidate
		e.state.CandidateSince = now
		if !e.has {
			// No committed phase yet: commit immediately on the first
			// observation so current_phase never returns the zero value.
			e.commitLocked(candidate, now)
		}
	case now.Sub(e.state.CandidateSince) >= e.StableSeconds:
		e.commitLocked(candidate, now)
	}

	return e.state.Current
}

func (e *DebouncedPhaseEngine) commitLocked(p model.Phase, now time.Time) {
	if !e.has || e.state.Current != p {
		recordTransition(e.state.Current, p, e.has)
	}
	e.state.Current = p
	e.state.EnteredAt = now
	e.state.Candidate = ""
	e.state.CandidateSince = time.Time{}
	e.has = true
}

// evaluateStale centralizes the stale-mode decision shared by both phase
// engine variants. Returns stale=true when the store has gone silent
// longer than staleAfter, plus the fallback phase: unknownPhase in unknown
// mode, the committed phase in freeze mode. Both engines ignore the
// fallback in freeze mode when nothing has committed yet and consult the
// scheduler instead.
func evaluateStale(now time.Time, store engine.StaleSource, staleAfter time.Duration, mode StaleMode, unknownPhase model.Phase, hasCommitted bool, committed model.Phase) (bool, model.Phase) {
	if staleAfter <= 0 || store == nil {
		return false, ""
	}
	if store.LastEventAge(now) <= staleAfter {
		return false, ""
	}

	metrics.StaleWarningsTotal.WithLabelValues(string(mode)).Inc()
	logging.L().WithField("component", "phase_engine").WithField("mode", mode).Warn("edge event store stale, applying stale-mode override")

	if mode == StaleModeUnknown {
		return true, unknownPhase
	}
	if !hasCommitted {
		return true, unknownPhase
	}
	return true, committed
}

func recordTransition(from, to model.Phase, hadPrevious bool) {
	fromLabel := string(from)
	if !hadPrevious {
		fromLabel = "none"
	}
	metrics.PhaseTransitionsTotal.WithLabelValues(fromLabel, string(to)).Inc()
	metrics.CurrentPhase.Reset()
	metrics.CurrentPhase.WithLabelValues(string(to)).Set(1)
}
