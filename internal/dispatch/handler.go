// Package dispatch implements EventDispatchTask's default dispatch engine:
// per-handler isolation with a single retry before the event is dropped
// and logged at ERROR, adapted from the primary/fallback batching shape
// used elsewhere in this codebase's ancestry for delivery resilience.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sitebridge.dev/phasebridge/internal/engine"
	"sitebridge.dev/phasebridge/internal/logging"
	"sitebridge.dev/phasebridge/internal/metrics"
	"sitebridge.dev/phasebridge/internal/model"
)

func init() {
	engine.RegisterEventDispatchEngine("isolating", func() engine.EventDispatchEngine {
		return &IsolatingDispatchEngine{}
	})
}

// Handler delivers one DispatchEvent to a single named external sink
// (e.g. an HTTP webhook, a database write, an MQTT republish). Handlers
// must bound their own latency; Dispatch enforces Timeout regardless.
type Handler interface {
	Handle(ctx context.Context, ev model.DispatchEvent) error
}

// IsolatingDispatchEngine routes each drained DispatchEvent to every
// handler named in ev.Handlers. One failing handler never blocks or drops
// another handler's delivery. A failed delivery is retried exactly once;
// if the retry also fails it is dropped with an ERROR log.
type IsolatingDispatchEngine struct {
	Handlers map[string]Handler
	Timeout  time.Duration
}

func (e *IsolatingDispatchEngine) Dispatch(now time.Time, events []model.DispatchEvent) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	log := logging.L().WithField("component", "dispatch_engine")

	var wg sync.WaitGroup
	for _, ev := range events {
		for _, name := range ev.Handlers {
			handler, ok := e.Handlers[name]
			if !ok {
				log.WithField("handler", name).WithField("event_id", ev.ID).Warn("dispatch event names unregistered handler")
				metrics.DispatchErrorsTotal.WithLabelValues(name, "unregistered").Inc()
				continue
			}

			wg.Add(1)
			go func(name string, handler Handler, ev model.DispatchEvent) {
				defer wg.Done()
				e.deliverWithRetry(name, handler, ev, timeout, log)
			}(name, handler, ev)
		}
	}
	wg.Wait()
}

func (e *IsolatingDispatchEngine) deliverWithRetry(name string, handler Handler, ev model.DispatchEvent, timeout time.Duration, log *logrus.Entry) {
	if e.attempt(name, handler, ev, timeout) {
		return
	}
	metrics.DispatchErrorsTotal.WithLabelValues(name, "retry").Inc()

	if e.attempt(name, handler, ev, timeout) {
		return
	}
	metrics.DispatchErrorsTotal.WithLabelValues(name, "dropped").Inc()
	log.WithField("handler", name).WithField("event_id", ev.ID).Error("dispatch handler failed after retry, dropping event")
}

func (e *IsolatingDispatchEngine) attempt(name string, handler Handler, ev model.DispatchEvent, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- handler.Handle(ctx, ev) }()
	select {
	case err := <-done:
		return err == nil
	case <-ctx.Done():
		return false
	}
}
