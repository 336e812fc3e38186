package engine

import (
	"fmt"
	"sort"

	"sitebridge.dev/phasebridge/internal/model"
)

// Factory types - zero-argument constructors returning a fresh engine
// instance. Configuration is injected afterward by the caller.
type (
	IngestionEngineFactory    func() IngestionEngine
	RuleEngineFactory         func() RuleEngine
	FormatStrategyFactory     func() FormatStrategy
	EventDispatchEngineFactory func() EventDispatchEngine
	PipelineSelectorFactory   func() PipelineSelector
	SchedulerEngineFactory    func() SchedulerEngine
	PhaseEngineFactory        func() PhaseEngine
)

// Global registry maps, populated during package init() of each engine
// implementation file and read-only once the daemon starts ticking.
var (
	ingestionEngineRegistry    = make(map[string]IngestionEngineFactory)
	ruleEngineRegistry         = make(map[string]RuleEngineFactory)
	formatStrategyRegistry     = make(map[string]FormatStrategyFactory)
	eventDispatchEngineRegistry = make(map[string]EventDispatchEngineFactory)
	pipelineSelectorRegistry   = make(map[string]PipelineSelectorFactory)
	schedulerEngineRegistry    = make(map[string]SchedulerEngineFactory)
	phaseEngineRegistry        = make(map[string]PhaseEngineFactory)
)

// RegisterIngestionEngine registers an ingestion engine factory by name.
// Panics if name is empty/duplicate or factory is nil (a compile-time bug).
func RegisterIngestionEngine(name string, factory IngestionEngineFactory) {
	if name == "" {
		panic("engine: ingestion engine name cannot be empty")
	}
	if factory == nil {
		panic("engine: ingestion engine factory cannot be nil")
	}
	if _, exists := ingestionEngineRegistry[name]; exists {
		panic(fmt.Sprintf("engine: ingestion engine %q already registered", name))
	}
	ingestionEngineRegistry[name] = factory
}

// GetIngestionEngineFactory returns the factory for the named ingestion
// engine, or model.ErrPluginNotFound.
func GetIngestionEngineFactory(name string) (IngestionEngineFactory, error) {
	factory, ok := ingestionEngineRegistry[name]
	if !ok {
		return nil, fmt.Errorf("ingestion engine %q: %w", name, model.ErrPluginNotFound)
	}
	return factory, nil
}

// ListIngestionEngines returns a sorted list of registered names.
func ListIngestionEngines() []string { return sortedKeys(ingestionEngineRegistry) }

// RegisterRuleEngine registers a rule engine factory by name.
func RegisterRuleEngine(name string, factory RuleEngineFactory) {
	if name == "" {
		panic("engine: rule engine name cannot be empty")
	}
	if factory == nil {
		panic("engine: rule engine factory cannot be nil")
	}
	if _, exists := ruleEngineRegistry[name]; exists {
		panic(fmt.Sprintf("engine: rule engine %q already registered", name))
	}
	ruleEngineRegistry[name] = factory
}

// GetRuleEngineFactory returns the factory for the named rule engine, or
// model.ErrPluginNotFound.
func GetRuleEngineFactory(name string) (RuleEngineFactory, error) {
	factory, ok := ruleEngineRegistry[name]
	if !ok {
		return nil, fmt.Errorf("rule engine %q: %w", name, model.ErrPluginNotFound)
	}
	return factory, nil
}

// ListRuleEngines returns a sorted list of registered names.
func ListRuleEngines() []string { return sortedKeys(ruleEngineRegistry) }

// RegisterFormatStrategy registers a format strategy factory by name.
func RegisterFormatStrategy(name string, factory FormatStrategyFactory) {
	if name == "" {
		panic("engine: format strategy name cannot be empty")
	}
	if factory == nil {
		panic("engine: format strategy factory cannot be nil")
	}
	if _, exists := formatStrategyRegistry[name]; exists {
		panic(fmt.Sprintf("engine: format strategy %q already registered", name))
	}
	formatStrategyRegistry[name] = factory
}

// GetFormatStrategyFactory returns the factory for the named format
// strategy, or model.ErrPluginNotFound.
func GetFormatStrategyFactory(name string) (FormatStrategyFactory, error) {
	factory, ok := formatStrategyRegistry[name]
	if !ok {
		return nil, fmt.Errorf("format strategy %q: %w", name, model.ErrPluginNotFound)
	}
	return factory, nil
}

// ListFormatStrategies returns a sorted list of registered names.
func ListFormatStrategies() []string { return sortedKeys(formatStrategyRegistry) }

// RegisterEventDispatchEngine registers an event dispatch engine factory.
func RegisterEventDispatchEngine(name string, factory EventDispatchEngineFactory) {
	if name == "" {
		panic("engine: event dispatch engine name cannot be empty")
	}
	if factory == nil {
		panic("engine: event dispatch engine factory cannot be nil")
	}
	if _, exists := eventDispatchEngineRegistry[name]; exists {
		panic(fmt.Sprintf("engine: event dispatch engine %q already registered", name))
	}
	eventDispatchEngineRegistry[name] = factory
}

// GetEventDispatchEngineFactory returns the factory for the named event
// dispatch engine, or model.ErrPluginNotFound.
func GetEventDispatchEngineFactory(name string) (EventDispatchEngineFactory, error) {
	factory, ok := eventDispatchEngineRegistry[name]
	if !ok {
		return nil, fmt.Errorf("event dispatch engine %q: %w", name, model.ErrPluginNotFound)
	}
	return factory, nil
}

// ListEventDispatchEngines returns a sorted list of registered names.
func ListEventDispatchEngines() []string { return sortedKeys(eventDispatchEngineRegistry) }

// RegisterPipelineSelector registers a pipeline selector factory.
func RegisterPipelineSelector(name string, factory PipelineSelectorFactory) {
	if name == "" {
		panic("engine: pipeline selector name cannot be empty")
	}
	if factory == nil {
		panic("engine: pipeline selector factory cannot be nil")
	}
	if _, exists := pipelineSelectorRegistry[name]; exists {
		panic(fmt.Sprintf("engine: pipeline selector %q already registered", name))
	}
	pipelineSelectorRegistry[name] = factory
}

// GetPipelineSelectorFactory returns the factory for the named selector,
// or model.ErrPluginNotFound.
func GetPipelineSelectorFactory(name string) (PipelineSelectorFactory, error) {
	factory, ok := pipelineSelectorRegistry[name]
	if !ok {
		return nil, fmt.Errorf("pipeline selector %q: %w", name, model.ErrPluginNotFound)
	}
	return factory, nil
}

// ListPipelineSelectors returns a sorted list of registered names.
func ListPipelineSelectors() []string { return sortedKeys(pipelineSelectorRegistry) }

// RegisterSchedulerEngine registers a scheduler engine factory.
func RegisterSchedulerEngine(name string, factory SchedulerEngineFactory) {
	if name == "" {
		panic("engine: scheduler engine name cannot be empty")
	}
	if factory == nil {
		panic("engine: scheduler engine factory cannot be nil")
	}
	if _, exists := schedulerEngineRegistry[name]; exists {
		panic(fmt.Sprintf("engine: scheduler engine %q already registered", name))
	}
	schedulerEngineRegistry[name] = factory
}

// GetSchedulerEngineFactory returns the factory for the named scheduler
// engine, or model.ErrPluginNotFound.
func GetSchedulerEngineFactory(name string) (SchedulerEngineFactory, error) {
	factory, ok := schedulerEngineRegistry[name]
	if !ok {
		return nil, fmt.Errorf("scheduler engine %q: %w", name, model.ErrPluginNotFound)
	}
	return factory, nil
}

// ListSchedulerEngines returns a sorted list of registered names.
func ListSchedulerEngines() []string { return sortedKeys(schedulerEngineRegistry) }

// RegisterPhaseEngine registers a phase engine factory.
func RegisterPhaseEngine(name string, factory PhaseEngineFactory) {
	if name == "" {
		panic("engine: phase engine name cannot be empty")
	}
	if factory == nil {
		panic("engine: phase engine factory cannot be nil")
	}
	if _, exists := phaseEngineRegistry[name]; exists {
		panic(fmt.Sprintf("engine: phase engine %q already registered", name))
	}
	phaseEngineRegistry[name] = factory
}

// GetPhaseEngineFactory returns the factory for the named phase engine,
// or model.ErrPluginNotFound.
func GetPhaseEngineFactory(name string) (PhaseEngineFactory, error) {
	factory, ok := phaseEngineRegistry[name]
	if !ok {
		return nil, fmt.Errorf("phase engine %q: %w", name, model.ErrPluginNotFound)
	}
	return factory, nil
}

// ListPhaseEngines returns a sorted list of registered names.
func ListPhaseEngines() []string { return sortedKeys(phaseEngineRegistry) }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
