package pipeline

import (
	"sitebridge.dev/phasebridge/internal/engine"
	"sitebridge.dev/phasebridge/internal/model"
)

func init() {
	engine.RegisterPipelineSelector("working_hours", func() engine.PipelineSelector {
		return &WorkingHoursSelector{}
	})
}

// WorkingHoursSelector is the default PipelineSelector: the pipeline name
// always equals the committed phase, with no sleep override and no
// phase_changed signal of its own (PhaseTask already enqueues a
// phase-change event whenever the PhaseEngine's committed phase differs
// from the prior tick's, independent of selector metadata).
type WorkingHoursSelector struct{}

func (WorkingHoursSelector) Select(phase model.Phase, ctxScratch map[string]any) (string, model.SelectorMeta) {
	return string(phase), model.SelectorMeta{}
}
