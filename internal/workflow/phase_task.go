package workflow

import (
	"time"

	"sitebridge.dev/phasebridge/internal/logging"
	"sitebridge.dev/phasebridge/internal/metrics"
	"sitebridge.dev/phasebridge/internal/model"
)

// tick runs one PhaseTask iteration: resolve the committed phase,
// heartbeat-publish it, emit a phase_change event on transition, select
// and run a pipeline, and compute the next sleep. Returns the duration
// to sleep before the next tick.
func (r *Runner) tick() time.Duration {
	start := time.Now()
	log := logging.L().WithField("component", "phase_task")

	phase := r.phaseEngine.CurrentPhase(start, r.store)

	r.mu.Lock()
	previous := r.previousPhase
	hadPrevious := r.hasPrevious
	phaseChanged := !hadPrevious || previous != phase
	r.previousPhase = phase
	r.hasPrevious = true
	lastHeartbeat := r.lastHeartbeat
	r.mu.Unlock()

	heartbeatDue := phaseChanged || lastHeartbeat.IsZero() || start.Sub(lastHeartbeat) >= r.cfg.Heartbeat()
	if heartbeatDue {
		if ok := r.publishAdapter.PublishPhase(phase, start); !ok {
			log.WithField("phase", phase).Warn("phase heartbeat publish failed, will retry at the next heartbeat")
		}
		r.mu.Lock()
		r.lastHeartbeat = start
		r.mu.Unlock()
	}

	r.taskCtx.ResetScratch()

	if phaseChanged {
		fromLabel := string(previous)
		if !hadPrevious {
			fromLabel = "none"
		}
		r.taskCtx.Enqueue(model.NewDispatchEvent("phase_task", []string{"monitor"}, map[string]any{
			"from": fromLabel,
			"to":   string(phase),
			"at":   start.Format(time.RFC3339),
		}, start))
	}

	r.mu.Lock()
	selector := r.selector
	registry := r.registry
	r.mu.Unlock()

	name, meta := selector.Select(phase, nil)
	if meta.PhaseChanged && !phaseChanged {
		r.taskCtx.Enqueue(model.NewDispatchEvent("phase_task", []string{"monitor"}, map[string]any{
			"from": string(previous),
			"to":   string(phase),
			"at":   start.Format(time.RFC3339),
		}, start))
	}

	pl, defaultSleep, err := registry.Get(model.Phase(name))
	if err != nil {
		log.WithError(err).WithField("pipeline", name).Error("no pipeline registered for selected name, skipping tick")
		return r.cfg.LoopInterval()
	}

	result := pl.Run(r.taskCtx)

	metrics.TickLatencySeconds.WithLabelValues(pl.Name).Observe(time.Since(start).Seconds())
	metrics.DispatchQueueDepth.Set(float64(r.taskCtx.QueueLen()))
	metrics.StoreSize.Set(float64(r.store.Len()))

	sleep := defaultSleep
	if meta.HasSleep {
		sleep = meta.Sleep
	}
	if s, ok := result.Sleep(); ok {
		sleep = s
	}
	if sleep <= 0 {
		sleep = r.cfg.LoopInterval()
	}
	metrics.PipelineSleepSeconds.Set(sleep.Seconds())

	return sleep
}
