package pipeline

import (
	"fmt"
	"time"

	"sitebridge.dev/phasebridge/internal/logging"
	"sitebridge.dev/phasebridge/internal/metrics"
	"sitebridge.dev/phasebridge/internal/model"
)

// Pipeline is a composite BaseTask that runs its tasks in declared order:
// Ingestion, MCMOT, Format (optional), Rule, EventDispatch. A task
// returning ok=false short-circuits the remaining tasks in this pipeline;
// the outer workflow loop is unaffected either way.
type Pipeline struct {
	Name         string
	Tasks        []BaseTask
	DefaultSleep time.Duration
}

// Run executes every task in order, merging their TaskResult payloads
// shallowly (last-writer-wins), and returns the terminal result.
func (p *Pipeline) Run(ctx *TaskContext) model.TaskResult {
	log := logging.L().WithField("component", "pipeline").WithField("pipeline", p.Name)

	result := model.TaskResult{OK: true, Payload: map[string]any{}}

	for _, task := range p.Tasks {
		taskResult, err := task.Run(ctx)
		if err != nil {
			metrics.TaskErrorsTotal.WithLabelValues(task.Name(), p.Name).Inc()
			log.WithError(err).WithField("task", task.Name()).Error("task execution failed, short-circuiting pipeline")
			result.Merge(model.TaskResult{OK: false})
			return result
		}

		result.Merge(taskResult)
		if !taskResult.OK {
			log.WithField("task", task.Name()).Debug("task short-circuited pipeline")
			return result
		}
	}

	return result
}

// Registry holds the immutable phase->pipeline mapping, built once at
// startup by InitPipelineTask from the schedule JSON.
type Registry struct {
	pipelines map[model.Phase]*Pipeline
}

// NewRegistry builds an empty registry; Register populates it during
// startup and nothing mutates it afterward.
func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[model.Phase]*Pipeline)}
}

// Register associates a phase with the pipeline to run while that phase
// is active.
func (r *Registry) Register(phase model.Phase, p *Pipeline) {
	r.pipelines[phase] = p
}

// Get returns the pipeline registered for phase, or ErrUnknownPhase.
func (r *Registry) Get(phase model.Phase) (*Pipeline, time.Duration, error) {
	p, ok := r.pipelines[phase]
	if !ok {
		return nil, 0, fmt.Errorf("phase %q: %w", phase, model.ErrUnknownPhase)
	}
	return p, p.DefaultSleep, nil
}
