// Package pipeline implements the per-tick task chain: TaskContext, the
// BaseTask contract, the PipelineTask composite, and the five built-in
// tasks (Ingestion, MCMOT, FormatConversion, RuleEvaluation,
// EventDispatch) that make up a working pipeline.
package pipeline

import (
	"sync"

	"sitebridge.dev/phasebridge/internal/comm"
	"sitebridge.dev/phasebridge/internal/model"
	"sitebridge.dev/phasebridge/internal/store"
)

// Scratch carries one tick's intermediate output between tasks. Named,
// typed fields replace the source's loosely-keyed resource bag per the
// design note on TaskContext.
type Scratch struct {
	Events        []model.EdgeEvent
	RawCount      int
	GlobalObjects []map[string]any
	LocalObjects  []map[string]any
	RulesPayload  map[string]any
}

// TaskContext is owned exclusively by WorkflowRunner; tasks borrow it for
// the duration of one Run call and never retain references past that
// call. EventQueue is appended to by main-thread tasks only and drained
// to empty by EventDispatchTask at the end of every tick.
type TaskContext struct {
	Store   *store.Store
	Adapter comm.Adapter

	Scratch Scratch

	mu         sync.Mutex
	eventQueue []model.DispatchEvent
}

// ResetScratch clears the prior tick's intermediate output. WorkflowRunner
// calls this once at the start of every tick, before running the
// selected pipeline.
func (c *TaskContext) ResetScratch() {
	c.Scratch = Scratch{}
}

// Enqueue appends a DispatchEvent for delivery at the end of this tick.
func (c *TaskContext) Enqueue(ev model.DispatchEvent) {
	c.mu.Lock()
	c.eventQueue = append(c.eventQueue, ev)
	c.mu.Unlock()
}

// DrainEvents atomically swaps out the queued events and clears the
// shared queue, so EventDispatchTask's caller observes len(queue)==0
// immediately after this returns.
func (c *TaskContext) DrainEvents() []model.DispatchEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	drained := c.eventQueue
	c.eventQueue = nil
	return drained
}

// QueueLen reports the number of events currently pending drain.
func (c *TaskContext) QueueLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.eventQueue)
}

// BaseTask is one pipeline node. Run may short-circuit the remainder of
// the pipeline by returning a TaskResult with OK=false; the outer
// workflow loop continues regardless.
type BaseTask interface {
	Name() string
	Run(ctx *TaskContext) (model.TaskResult, error)
}
