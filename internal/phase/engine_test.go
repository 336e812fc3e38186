package phase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sitebridge.dev/phasebridge/internal/model"
)

// boundedScheduler returns sequence[i] on the i-th call, clamped to the
// last entry once exhausted.
type boundedScheduler struct {
	sequence []model.Phase
	calls    int
}

func (s *boundedScheduler) CandidatePhase(now time.Time) model.Phase {
	idx := s.calls
	if idx >= len(s.sequence) {
		idx = len(s.sequence) - 1
	}
	s.calls++
	return s.sequence[idx]
}

func TestDebouncedPhaseEngine_StaysOnFirstCandidate(t *testing.T) {
	sched := &boundedScheduler{sequence: []model.Phase{PhaseWorking, PhaseNonWorking, PhaseWorking}}
	e := &DebouncedPhaseEngine{Scheduler: sched, StableSeconds: 5 * time.Second}

	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	p0 := e.CurrentPhase(base, nil)
	p1 := e.CurrentPhase(base.Add(1*time.Second), nil)
	p2 := e.CurrentPhase(base.Add(2*time.Second), nil)

	assert.Equal(t, PhaseWorking, p0)
	assert.Equal(t, PhaseWorking, p1)
	assert.Equal(t, PhaseWorking, p2)
}

func TestDebouncedPhaseEngine_CommitsAfterStableWindow(t *testing.T) {
	sched := &boundedScheduler{sequence: []model.Phase{PhaseWorking, PhaseNonWorking, PhaseNonWorking, PhaseNonWorking}}
	e := &DebouncedPhaseEngine{Scheduler: sched, StableSeconds: 2 * time.Second}

	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	e.CurrentPhase(base, nil)
	p1 := e.CurrentPhase(base.Add(1*time.Second), nil)
	p2 := e.CurrentPhase(base.Add(2*time.Second), nil)
	p3 := e.CurrentPhase(base.Add(3*time.Second), nil)

	assert.Equal(t, PhaseWorking, p1)
	assert.Equal(t, PhaseWorking, p2)
	assert.Equal(t, PhaseNonWorking, p3)
}

type staleStoreStub struct{ age time.Duration }

func (s staleStoreStub) LastEventAge(time.Time) time.Duration { return s.age }

func TestDebouncedPhaseEngine_StaleFreezeReturnsCommitted(t *testing.T) {
	sched := &boundedScheduler{sequence: []model.Phase{PhaseWorking, PhaseNonWorking}}
	e := &DebouncedPhaseEngine{
		Scheduler:     sched,
		StableSeconds: time.Second,
		StaleAfter:    10 * time.Second,
		StaleMode:     StaleModeFreeze,
	}
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	e.CurrentPhase(base, staleStoreStub{age: 0})
	p := e.CurrentPhase(base.Add(15*time.Second), staleStoreStub{age: 15 * time.Second})

	assert.Equal(t, PhaseWorking, p)
}

func TestDebouncedPhaseEngine_StaleUnknownForcesCommit(t *testing.T) {
	sched := &boundedScheduler{sequence: []model.Phase{PhaseWorking, PhaseNonWorking}}
	e := &DebouncedPhaseEngine{
		Scheduler:     sched,
		StableSeconds: time.Second,
		StaleAfter:    10 * time.Second,
		StaleMode:     StaleModeUnknown,
		UnknownPhase:  "idle",
	}
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	e.CurrentPhase(base, staleStoreStub{age: 0})
	p := e.CurrentPhase(base.Add(15*time.Second), staleStoreStub{age: 15 * time.Second})

	assert.EqualValues(t, "idle", p)
}

func TestDebouncedPhaseEngine_NoStaleOverrideWhenFresh(t *testing.T) {
	sched := &boundedScheduler{sequence: []model.Phase{PhaseWorking}}
	e := &DebouncedPhaseEngine{
		Scheduler:     sched,
		StableSeconds: time.Second,
		StaleAfter:    10 * time.Second,
		StaleMode:     StaleModeUnknown,
		UnknownPhase:  "idle",
	}
	base := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)

	p := e.CurrentPhase(base, staleStoreStub{age: time.Second})
	assert.Equal(t, PhaseWorking, p)
}
