package pipeline

import (
	"time"

	"sitebridge.dev/phasebridge/internal/engine"
	"sitebridge.dev/phasebridge/internal/logging"
	"sitebridge.dev/phasebridge/internal/mcmot"
	"sitebridge.dev/phasebridge/internal/model"
)

// IngestionTask reads the EdgeEventStore's current snapshot into
// Scratch.Events. A plugin IngestionEngine (INGESTION_ENGINE_CLASS) may
// transform or filter the snapshot before it reaches the rest of the
// pipeline.
type IngestionTask struct {
	Engine engine.IngestionEngine
}

func (t *IngestionTask) Name() string { return "ingestion" }

func (t *IngestionTask) Run(ctx *TaskContext) (model.TaskResult, error) {
	now := time.Now()

	var events []model.EdgeEvent
	if t.Engine != nil {
		events = t.Engine.Snapshot(now)
	} else {
		events = ctx.Store.Snapshot()
	}

	ctx.Scratch.Events = events
	ctx.Scratch.RawCount = len(events)

	return model.TaskResult{OK: true, Payload: map[string]any{"raw_count": len(events)}}, nil
}

// MCMOTTask hands the tick's events to the (external) MC-MOT tracking
// engine and stores its global/local object output. If Engine is nil,
// MCMOT is treated as disabled and the task passes events through.
type MCMOTTask struct {
	Engine mcmot.Engine
}

func (t *MCMOTTask) Name() string { return "mcmot" }

func (t *MCMOTTask) Run(ctx *TaskContext) (model.TaskResult, error) {
	eng := t.Engine
	if eng == nil {
		eng = mcmot.PassthroughEngine{}
	}

	payloads := make([]map[string]any, len(ctx.Scratch.Events))
	for i, ev := range ctx.Scratch.Events {
		payloads[i] = map[string]any{
			"camera_id":  ev.CameraID,
			"timestamp":  ev.Timestamp,
			"detections": ev.Payload,
		}
	}

	global, local, err := eng.Track(payloads)
	if err != nil {
		return model.TaskResult{}, err
	}

	ctx.Scratch.GlobalObjects = global
	ctx.Scratch.LocalObjects = local

	return model.TaskResult{OK: true}, nil
}

// FormatConversionTask converts tracking output into the rules_payload
// shape RuleEvaluationTask expects. Skipped entirely when
// FORMAT_TASK_ENABLED=0 (the pipeline simply omits this task).
type FormatConversionTask struct {
	Strategy engine.FormatStrategy
}

func (t *FormatConversionTask) Name() string { return "format_conversion" }

func (t *FormatConversionTask) Run(ctx *TaskContext) (model.TaskResult, error) {
	if t.Strategy != nil {
		ctx.Scratch.RulesPayload = t.Strategy.Convert(ctx.Scratch.GlobalObjects, ctx.Scratch.LocalObjects)
		return model.TaskResult{OK: true}, nil
	}

	ctx.Scratch.RulesPayload = defaultConvert(ctx.Scratch.LocalObjects)
	return model.TaskResult{OK: true}, nil
}

// defaultConvert buckets local tracked objects by zone and class into the
// {"zones": map[zone]map[class]count} shape ThresholdRuleEngine expects.
func defaultConvert(localObjects []map[string]any) map[string]any {
	zones := make(map[string]map[string]int)
	for _, obj := range localObjects {
		zone, _ := obj["zone"].(string)
		class, _ := obj["class"].(string)
		if zone == "" || class == "" {
			continue
		}
		if zones[zone] == nil {
			zones[zone] = make(map[string]int)
		}
		zones[zone][class]++
	}
	return map[string]any{"zones": zones}
}

// RuleEvaluationTask runs the configured RuleEngine over rules_payload and
// enqueues any resulting DispatchEvents.
type RuleEvaluationTask struct {
	Engine engine.RuleEngine
}

func (t *RuleEvaluationTask) Name() string { return "rule_evaluation" }

func (t *RuleEvaluationTask) Run(ctx *TaskContext) (model.TaskResult, error) {
	if t.Engine == nil {
		return model.TaskResult{OK: true}, nil
	}

	events := t.Engine.Evaluate(time.Now(), ctx.Scratch.RulesPayload)
	for _, ev := range events {
		ctx.Enqueue(ev)
	}

	return model.TaskResult{OK: true}, nil
}

// EventDispatchTask is last in every pipeline. It drains the context's
// event queue atomically and routes each event through the configured
// dispatch engine.
type EventDispatchTask struct {
	Engine engine.EventDispatchEngine
}

func (t *EventDispatchTask) Name() string { return "event_dispatch" }

func (t *EventDispatchTask) Run(ctx *TaskContext) (model.TaskResult, error) {
	drained := ctx.DrainEvents()
	if len(drained) == 0 {
		return model.TaskResult{OK: true}, nil
	}

	if t.Engine == nil {
		logging.L().WithField("component", "event_dispatch_task").WithField("dropped", len(drained)).
			Warn("no dispatch engine configured, dropping queued events")
		return model.TaskResult{OK: true}, nil
	}

	t.Engine.Dispatch(time.Now(), drained)
	return model.TaskResult{OK: true}, nil
}
