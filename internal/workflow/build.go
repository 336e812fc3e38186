// Package workflow wires every other package together into the running
// daemon: WorkflowRunner owns startup (config -> store -> comm adapter ->
// InitPipelineTask -> main loop), the per-tick PhaseTask logic, and
// deterministic shutdown.
package workflow

import (
	"fmt"
	"time"

	"sitebridge.dev/phasebridge/internal/config"
	"sitebridge.dev/phasebridge/internal/dispatch"
	"sitebridge.dev/phasebridge/internal/engine"
	"sitebridge.dev/phasebridge/internal/mcmot"
	"sitebridge.dev/phasebridge/internal/model"
	"sitebridge.dev/phasebridge/internal/phase"
	"sitebridge.dev/phasebridge/internal/pipeline"
	"sitebridge.dev/phasebridge/internal/rule"
)

// buildScheduler resolves the configured SchedulerEngine by name and
// injects the configuration a built-in variant needs, matching the
// "zero-argument factory, caller configures the instance" registry
// contract (internal/engine/registry.go).
func buildScheduler(cfg *config.GlobalConfig) (engine.SchedulerEngine, error) {
	factory, err := engine.GetSchedulerEngineFactory(cfg.Plugins.SchedulerEngine)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving scheduler engine: %v", model.ErrConfigInvalid, err)
	}
	instance := factory()

	switch s := instance.(type) {
	case *phase.TimeBasedSchedulerEngine:
		s.Location = cfg.Location()
		s.Windows = make([]phase.Window, len(cfg.Phase.Windows))
		for i, w := range cfg.Phase.Windows {
			s.Windows[i] = phase.Window{Start: w.Start, End: w.End}
		}
	case *phase.IronGateSchedulerEngine:
		// Door-state signal is an external collaborator spec.md leaves
		// unspecified; Source stays nil until a deployment wires one in.
	}

	return instance, nil
}

// buildPhaseEngine resolves the configured PhaseEngine by name and wires
// the scheduler plus the stale-handling fields every variant shares.
func buildPhaseEngine(cfg *config.GlobalConfig, scheduler engine.SchedulerEngine) (engine.PhaseEngine, error) {
	factory, err := engine.GetPhaseEngineFactory(cfg.Plugins.PhaseEngine)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving phase engine: %v", model.ErrConfigInvalid, err)
	}
	instance := factory()

	staleMode := phase.StaleMode(cfg.EdgeEvent.StaleMode)
	unknownPhase := model.Phase(cfg.EdgeEvent.UnknownPhase)

	switch pe := instance.(type) {
	case *phase.TimeBasedPhaseEngine:
		pe.Scheduler = scheduler
		pe.StaleAfter = cfg.StaleAfter()
		pe.StaleMode = staleMode
		pe.UnknownPhase = unknownPhase
	case *phase.DebouncedPhaseEngine:
		pe.Scheduler = scheduler
		pe.StableSeconds = cfg.StableWindow()
		pe.StaleAfter = cfg.StaleAfter()
		pe.StaleMode = staleMode
		pe.UnknownPhase = unknownPhase
	default:
		return nil, fmt.Errorf("%w: phase engine %q has no known configuration shape", model.ErrConfigInvalid, cfg.Plugins.PhaseEngine)
	}

	return instance, nil
}

// buildIngestionEngine resolves INGESTION_ENGINE_CLASS if configured;
// otherwise nil, so IngestionTask falls back to the store's own snapshot.
func buildIngestionEngine(cfg *config.GlobalConfig) (engine.IngestionEngine, error) {
	if cfg.Plugins.IngestionEngine == "" {
		return nil, nil
	}
	factory, err := engine.GetIngestionEngineFactory(cfg.Plugins.IngestionEngine)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving ingestion engine: %v", model.ErrConfigInvalid, err)
	}
	return factory(), nil
}

// buildTrackingEngine resolves TRACKING_ENGINE_CLASS if configured;
// otherwise nil, so MCMOTTask falls back to mcmot.PassthroughEngine.
func buildTrackingEngine(cfg *config.GlobalConfig) (mcmot.Engine, error) {
	if cfg.Plugins.TrackingEngine == "" {
		return nil, nil
	}
	// The MC-MOT engine's internals are an external collaborator
	// (spec.md §1). internal/engine has no registry for tracking engines,
	// so no name can be resolved: any non-empty TRACKING_ENGINE_CLASS is
	// rejected here as a configuration error.
	return nil, fmt.Errorf("%w: tracking engine %q not linked into this binary", model.ErrConfigInvalid, cfg.Plugins.TrackingEngine)
}

// buildFormatStrategy resolves FORMAT_STRATEGY_CLASS if configured;
// otherwise nil, so FormatConversionTask falls back to its built-in
// zone/class bucketing.
func buildFormatStrategy(cfg *config.GlobalConfig) (engine.FormatStrategy, error) {
	if cfg.Plugins.FormatStrategy == "" {
		return nil, nil
	}
	factory, err := engine.GetFormatStrategyFactory(cfg.Plugins.FormatStrategy)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving format strategy: %v", model.ErrConfigInvalid, err)
	}
	return factory(), nil
}

// buildRuleEngine resolves RULES_ENGINE_CLASS (default "threshold") and,
// for the built-in threshold engine, injects the configured thresholds.
func buildRuleEngine(cfg *config.GlobalConfig) (engine.RuleEngine, error) {
	factory, err := engine.GetRuleEngineFactory(cfg.Plugins.RulesEngine)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving rule engine: %v", model.ErrConfigInvalid, err)
	}
	instance := factory()

	if r, ok := instance.(*rule.ThresholdRuleEngine); ok {
		r.Thresholds = make([]rule.Threshold, len(cfg.Rules.Thresholds))
		for i, th := range cfg.Rules.Thresholds {
			r.Thresholds[i] = rule.Threshold{
				Zone:     th.Zone,
				Class:    th.Class,
				MaxCount: th.MaxCount,
				Handlers: th.Handlers,
			}
		}
	}

	return instance, nil
}

// buildDispatchEngine resolves EVENT_DISPATCH_ENGINE_CLASS (default
// "isolating"). Handlers start empty: handler registration (external API
// clients, DB writers) is explicitly out of scope for this daemon
// (spec.md §1) and is the embedder's responsibility via RegisterHandler
// before Runner.Start.
func buildDispatchEngine(cfg *config.GlobalConfig) (engine.EventDispatchEngine, error) {
	factory, err := engine.GetEventDispatchEngineFactory(cfg.Plugins.EventDispatchEngine)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving event dispatch engine: %v", model.ErrConfigInvalid, err)
	}
	instance := factory()

	if d, ok := instance.(*dispatch.IsolatingDispatchEngine); ok {
		d.Handlers = make(map[string]dispatch.Handler)
		d.Timeout = 5 * time.Second
	}

	return instance, nil
}

// buildSelector resolves PIPELINE_SELECTOR_CLASS (default "working_hours").
func buildSelector(cfg *config.GlobalConfig) (engine.PipelineSelector, error) {
	factory, err := engine.GetPipelineSelectorFactory(cfg.Plugins.PipelineSelector)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving pipeline selector: %v", model.ErrConfigInvalid, err)
	}
	return factory(), nil
}

// taskEngines bundles the shared, singleton task-level engine instances
// built once at startup and reused by every pipeline in the registry.
type taskEngines struct {
	ingestion engine.IngestionEngine
	tracking  mcmot.Engine
	format    engine.FormatStrategy
	rules     engine.RuleEngine
	dispatch  engine.EventDispatchEngine
}

// buildTaskEngines constructs every pluggable task-level engine once.
func buildTaskEngines(cfg *config.GlobalConfig) (*taskEngines, error) {
	ingestionEngine, err := buildIngestionEngine(cfg)
	if err != nil {
		return nil, err
	}
	trackingEngine, err := buildTrackingEngine(cfg)
	if err != nil {
		return nil, err
	}
	formatStrategy, err := buildFormatStrategy(cfg)
	if err != nil {
		return nil, err
	}
	ruleEngine, err := buildRuleEngine(cfg)
	if err != nil {
		return nil, err
	}
	dispatchEngine, err := buildDispatchEngine(cfg)
	if err != nil {
		return nil, err
	}

	return &taskEngines{
		ingestion: ingestionEngine,
		tracking:  trackingEngine,
		format:    formatStrategy,
		rules:     ruleEngine,
		dispatch:  dispatchEngine,
	}, nil
}

// buildTasks assembles the declared-order task chain shared by every
// pipeline: Ingestion, MCMOT, Format (if enabled), Rule, EventDispatch.
func buildTasks(cfg *config.GlobalConfig, engines *taskEngines) []pipeline.BaseTask {
	tasks := []pipeline.BaseTask{
		&pipeline.IngestionTask{Engine: engines.ingestion},
		&pipeline.MCMOTTask{Engine: engines.tracking},
	}
	if cfg.Pipeline.FormatTaskEnabled {
		tasks = append(tasks, &pipeline.FormatConversionTask{Strategy: engines.format})
	}
	tasks = append(tasks,
		&pipeline.RuleEvaluationTask{Engine: engines.rules},
		&pipeline.EventDispatchTask{Engine: engines.dispatch},
	)
	return tasks
}

// buildRegistry runs InitPipelineTask: parses the schedule file, builds
// the shared task chain, and populates a PipelineRegistry with one
// *pipeline.Pipeline instance per phase (sharing the task chain but
// carrying its own default sleep, per spec.md §4.4).
func buildRegistry(cfg *config.GlobalConfig, sched *config.PipelineSchedule, engines *taskEngines) (*pipeline.Registry, error) {
	tasks := buildTasks(cfg, engines)
	registry := pipeline.NewRegistry()

	for phaseName, def := range sched.Phases {
		pipelineDef, ok := sched.Pipelines[def.Pipeline]
		if !ok {
			// config.LoadPipelineSchedule already validated this; defensive
			// only, unreachable in practice.
			return nil, fmt.Errorf("%w: phase %q references undefined pipeline %q", model.ErrConfigInvalid, phaseName, def.Pipeline)
		}

		sleep := cfg.LoopInterval()
		if def.IntervalSeconds > 0 {
			sleep = time.Duration(def.IntervalSeconds) * time.Second
		}

		registry.Register(model.Phase(phaseName), &pipeline.Pipeline{
			Name:         def.Pipeline,
			Tasks:        tasks,
			DefaultSleep: sleep,
		})
		_ = pipelineDef.Class // carried through for schedule-file compatibility and logging only
	}

	return registry, nil
}
