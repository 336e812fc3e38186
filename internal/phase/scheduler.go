// Package phase implements the SchedulerEngine and PhaseEngine variants:
// the raw world-signal-to-phase mapping and the debounce/stale layer on
// top of it.
package phase

import (
	"time"

	"sitebridge.dev/phasebridge/internal/engine"
	"sitebridge.dev/phasebridge/internal/model"
)

const (
	PhaseWorking    model.Phase = "working"
	PhaseNonWorking model.Phase = "non_working"
)

func init() {
	engine.RegisterSchedulerEngine("single_phase", func() engine.SchedulerEngine {
		return &SinglePhaseSchedulerEngine{}
	})
	engine.RegisterSchedulerEngine("time_based", func() engine.SchedulerEngine {
		return &TimeBasedSchedulerEngine{}
	})
	engine.RegisterSchedulerEngine("iron_gate", func() engine.SchedulerEngine {
		return &IronGateSchedulerEngine{}
	})
}

// SinglePhaseSchedulerEngine always returns PhaseWorking. Used when a site
// has no working-hours concept.
type SinglePhaseSchedulerEngine struct{}

func (s *SinglePhaseSchedulerEngine) CandidatePhase(now time.Time) model.Phase {
	return PhaseWorking
}

// Window is one working-hours interval within a day, in HH:MM.
type Window struct {
	Start string
	End   string
}

// TimeBasedSchedulerEngine returns PhaseWorking while now (in Location)
// falls inside any configured Window, PhaseNonWorking otherwise.
type TimeBasedSchedulerEngine struct {
	Location *time.Location
	Windows  []Window
}

func (s *TimeBasedSchedulerEngine) CandidatePhase(now time.Time) model.Phase {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	minutesNow := local.Hour()*60 + local.Minute()

	for _, w := range s.Windows {
		start, err := parseHHMM(w.Start)
		if err != nil {
			continue
		}
		end, err := parseHHMM(w.End)
		if err != nil {
			continue
		}
		if minutesNow >= start && minutesNow < end {
			return PhaseWorking
		}
	}
	return PhaseNonWorking
}

func parseHHMM(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// DoorStateSource reports the most recently observed door-state signal,
// the external input IronGateSchedulerEngine consumes.
type DoorStateSource interface {
	DoorOpen() bool
}

// IronGateSchedulerEngine treats an open door signal as PhaseWorking.
type IronGateSchedulerEngine struct {
	Source DoorStateSource
}

func (s *IronGateSchedulerEngine) CandidatePhase(now time.Time) model.Phase {
	if s.Source == nil || !s.Source.DoorOpen() {
		return PhaseNonWorking
	}
	return PhaseWorking
}
