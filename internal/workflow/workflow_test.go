package workflow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebridge.dev/phasebridge/internal/comm"
	"sitebridge.dev/phasebridge/internal/config"
	"sitebridge.dev/phasebridge/internal/engine"
	"sitebridge.dev/phasebridge/internal/model"
	"sitebridge.dev/phasebridge/internal/pipeline"
	"sitebridge.dev/phasebridge/internal/store"
)

// fakeAdapter is a comm.Adapter test double that records published phases
// instead of touching a real transport.
type fakeAdapter struct {
	mu        sync.Mutex
	published []model.Phase
	publishOK bool
	stopped   bool
}

func newFakeAdapter() *fakeAdapter { return &fakeAdapter{publishOK: true} }

func (a *fakeAdapter) StartEventIngestion(onEvent comm.EventHandler) error { return nil }

func (a *fakeAdapter) PublishPhase(phase model.Phase, ts time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.published = append(a.published, phase)
	return a.publishOK
}

func (a *fakeAdapter) Stop() error {
	a.stopped = true
	return nil
}

func (a *fakeAdapter) publishedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.published)
}

// scriptedPhaseEngine returns phases in order, repeating the last one once
// the script is exhausted.
type scriptedPhaseEngine struct {
	script []model.Phase
	calls  int
}

func (s *scriptedPhaseEngine) CurrentPhase(now time.Time, src engine.StaleSource) model.Phase {
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	return s.script[i]
}

func newTestRunner(t *testing.T, phaseEngine *scriptedPhaseEngine, registry *pipeline.Registry) (*Runner, *fakeAdapter) {
	t.Helper()
	adapter := newFakeAdapter()
	cfg := &config.GlobalConfig{}
	cfg.Loop.IntervalSeconds = 5
	cfg.MQTT.HeartbeatSeconds = 30

	r := &Runner{
		cfg:            cfg,
		store:          store.New(0, 0, nil),
		ingestAdapter:  adapter,
		publishAdapter: adapter,
		phaseEngine:    phaseEngine,
		selector:       workingHoursTestSelector{},
		registry:       registry,
		taskCtx:        &pipeline.TaskContext{Store: store.New(0, 0, nil)},
		shutdownChan:   make(chan struct{}),
	}
	return r, adapter
}

// workingHoursTestSelector mirrors pipeline.WorkingHoursSelector without
// importing the pipeline package's init-registered name, to keep this
// test decoupled from registry globals.
type workingHoursTestSelector struct{}

func (workingHoursTestSelector) Select(phase model.Phase, ctxScratch map[string]any) (string, model.SelectorMeta) {
	return string(phase), model.SelectorMeta{}
}

func TestTick_PublishesHeartbeatOnFirstTick(t *testing.T) {
	registry := pipeline.NewRegistry()
	registry.Register("working", &pipeline.Pipeline{Name: "p", DefaultSleep: 7 * time.Second})

	phaseEng := &scriptedPhaseEngine{script: []model.Phase{"working"}}
	r, adapter := newTestRunner(t, phaseEng, registry)

	sleep := r.tick()

	assert.Equal(t, 1, adapter.publishedCount())
	assert.Equal(t, 7*time.Second, sleep)
}

func TestTick_EnqueuesPhaseChangeEventOnTransition(t *testing.T) {
	registry := pipeline.NewRegistry()
	registry.Register("working", &pipeline.Pipeline{Name: "p", DefaultSleep: time.Second})
	registry.Register("non_working", &pipeline.Pipeline{Name: "p", DefaultSleep: time.Second})

	phaseEng := &scriptedPhaseEngine{script: []model.Phase{"working", "non_working"}}
	r, adapter := newTestRunner(t, phaseEng, registry)

	r.tick()
	require.Equal(t, 1, adapter.publishedCount())

	r.tick()
	assert.Equal(t, 2, adapter.publishedCount(), "phase transition must always heartbeat regardless of cadence")
}

func TestTick_SkipsHeartbeatWhenPhaseStableAndWithinCadence(t *testing.T) {
	registry := pipeline.NewRegistry()
	registry.Register("working", &pipeline.Pipeline{Name: "p", DefaultSleep: time.Second})

	phaseEng := &scriptedPhaseEngine{script: []model.Phase{"working", "working"}}
	r, adapter := newTestRunner(t, phaseEng, registry)

	r.tick()
	r.tick()

	assert.Equal(t, 1, adapter.publishedCount())
}

func TestTick_UnknownPipelineNameFallsBackToLoopInterval(t *testing.T) {
	registry := pipeline.NewRegistry()
	phaseEng := &scriptedPhaseEngine{script: []model.Phase{"working"}}
	r, _ := newTestRunner(t, phaseEng, registry)

	sleep := r.tick()
	assert.Equal(t, 5*time.Second, sleep)
}

func TestTick_ResultSleepOverridesDefault(t *testing.T) {
	registry := pipeline.NewRegistry()
	registry.Register("working", &pipeline.Pipeline{
		Name:         "p",
		DefaultSleep: 9 * time.Second,
		Tasks: []pipeline.BaseTask{
			&overrideSleepTask{},
		},
	})

	phaseEng := &scriptedPhaseEngine{script: []model.Phase{"working"}}
	r, _ := newTestRunner(t, phaseEng, registry)

	sleep := r.tick()
	assert.Equal(t, 2*time.Second, sleep)
}

type overrideSleepTask struct{}

func (overrideSleepTask) Name() string { return "override_sleep" }

func (overrideSleepTask) Run(ctx *pipeline.TaskContext) (model.TaskResult, error) {
	return model.TaskResult{OK: true, Payload: map[string]any{"sleep": 2 * time.Second}}, nil
}
