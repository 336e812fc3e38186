// Package rule implements RuleEvaluationTask's default rule engine: a
// per-zone/per-class object-count threshold check over the tracking
// output, emitting violation DispatchEvents.
package rule

import (
	"fmt"
	"time"

	"sitebridge.dev/phasebridge/internal/engine"
	"sitebridge.dev/phasebridge/internal/model"
)

func init() {
	engine.RegisterRuleEngine("threshold", func() engine.RuleEngine {
		return &ThresholdRuleEngine{}
	})
}

// Threshold names the object class whose count in a zone trips a
// violation once MaxCount is exceeded.
type Threshold struct {
	Zone      string
	Class     string
	MaxCount  int
	Handlers  []string
}

// ThresholdRuleEngine fires a "violation" DispatchEvent whenever a zone's
// tracked object count for a class exceeds its configured threshold.
// rulesPayload is expected to carry a "zones" key: map[zone]map[class]count,
// the shape FormatConversionTask (or a passthrough) produces from tracking
// output.
type ThresholdRuleEngine struct {
	Thresholds []Threshold
}

func (r *ThresholdRuleEngine) Evaluate(now time.Time, rulesPayload map[string]any) []model.DispatchEvent {
	zones, ok := rulesPayload["zones"].(map[string]map[string]int)
	if !ok {
		return nil
	}

	var out []model.DispatchEvent
	for _, th := range r.Thresholds {
		counts, ok := zones[th.Zone]
		if !ok {
			continue
		}
		count, ok := counts[th.Class]
		if !ok || count <= th.MaxCount {
			continue
		}

		out = append(out, model.NewDispatchEvent("rule_engine", th.Handlers, map[string]any{
			"type":  "violation",
			"zone":  th.Zone,
			"class": th.Class,
			"count": count,
			"limit": th.MaxCount,
			"msg":   fmt.Sprintf("zone %s exceeded %s threshold: %d > %d", th.Zone, th.Class, count, th.MaxCount),
		}, now))
	}
	return out
}
