package config

import (
	"encoding/json"
	"fmt"
	"os"

	"sitebridge.dev/phasebridge/internal/model"
)

// PipelineDef names one entry in the schedule's "pipelines" map. Class
// names the pipeline template — a compile-time identifier now rather than
// a module:Class path (see internal/engine's registry design note); the
// built-in task chain (Ingestion, MCMOT, Format, Rule, EventDispatch) is
// shared by every pipeline, so Class is carried through for schedule-file
// compatibility and logging, not dynamically resolved.
type PipelineDef struct {
	Class string `json:"class"`
}

// PhaseDef maps one phase to the pipeline that runs while it is active,
// with an optional per-phase tick interval override.
type PhaseDef struct {
	Pipeline        string `json:"pipeline"`
	IntervalSeconds int    `json:"interval_seconds"`
}

// PipelineSchedule is the parsed shape of the PIPELINE_SCHEDULE_PATH file.
type PipelineSchedule struct {
	Pipelines map[string]PipelineDef `json:"pipelines"`
	Phases    map[string]PhaseDef    `json:"phases"`
}

// LoadPipelineSchedule reads and parses the schedule JSON file at path.
func LoadPipelineSchedule(path string) (*PipelineSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read schedule file: %v", model.ErrConfigInvalid, err)
	}

	var sched PipelineSchedule
	if err := json.Unmarshal(data, &sched); err != nil {
		return nil, fmt.Errorf("%w: parse schedule JSON: %v", model.ErrConfigInvalid, err)
	}

	if err := sched.Validate(); err != nil {
		return nil, err
	}

	return &sched, nil
}

// Validate cross-checks every phase's pipeline reference resolves in the
// pipelines map, and rejects an empty schedule.
func (s *PipelineSchedule) Validate() error {
	if len(s.Phases) == 0 {
		return fmt.Errorf("%w: schedule has no phases", model.ErrConfigInvalid)
	}

	for phase, def := range s.Phases {
		if def.Pipeline == "" {
			return fmt.Errorf("%w: phase %q: pipeline name is required", model.ErrConfigInvalid, phase)
		}
		if _, ok := s.Pipelines[def.Pipeline]; !ok {
			return fmt.Errorf("%w: phase %q: references undefined pipeline %q", model.ErrConfigInvalid, phase, def.Pipeline)
		}
		if def.IntervalSeconds < 0 {
			return fmt.Errorf("%w: phase %q: interval_seconds must be non-negative", model.ErrConfigInvalid, phase)
		}
	}

	return nil
}
