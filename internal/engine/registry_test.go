package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebridge.dev/phasebridge/internal/model"
)

type stubRuleEngine struct{ name string }

func (s *stubRuleEngine) Evaluate(now time.Time, payload map[string]any) []model.DispatchEvent {
	return nil
}

func TestRuleEngineRegistry_RegisterAndGet(t *testing.T) {
	RegisterRuleEngine("test_rule_engine_registry_and_get", func() RuleEngine {
		return &stubRuleEngine{name: "test"}
	})

	factory, err := GetRuleEngineFactory("test_rule_engine_registry_and_get")
	require.NoError(t, err)

	instance := factory()
	assert.Equal(t, &stubRuleEngine{name: "test"}, instance)
}

func TestRuleEngineRegistry_UnknownNameReturnsPluginNotFound(t *testing.T) {
	_, err := GetRuleEngineFactory("does_not_exist_xyz")
	assert.ErrorIs(t, err, model.ErrPluginNotFound)
}

func TestRuleEngineRegistry_DuplicateNamePanics(t *testing.T) {
	RegisterRuleEngine("test_rule_engine_dup", func() RuleEngine { return &stubRuleEngine{} })

	assert.Panics(t, func() {
		RegisterRuleEngine("test_rule_engine_dup", func() RuleEngine { return &stubRuleEngine{} })
	})
}

func TestRuleEngineRegistry_EmptyNamePanics(t *testing.T) {
	assert.Panics(t, func() {
		RegisterRuleEngine("", func() RuleEngine { return &stubRuleEngine{} })
	})
}

func TestListRuleEngines_IsSorted(t *testing.T) {
	RegisterRuleEngine("zzz_test_list", func() RuleEngine { return &stubRuleEngine{} })
	RegisterRuleEngine("aaa_test_list", func() RuleEngine { return &stubRuleEngine{} })

	names := ListRuleEngines()
	var aIdx, zIdx = -1, -1
	for i, n := range names {
		if n == "aaa_test_list" {
			aIdx = i
		}
		if n == "zzz_test_list" {
			zIdx = i
		}
	}
	require.NotEqual(t, -1, aIdx)
	require.NotEqual(t, -1, zIdx)
	assert.Less(t, aIdx, zIdx)
}

func TestSchedulerEngineRegistry_RegisterAndGet(t *testing.T) {
	RegisterSchedulerEngine("test_scheduler_registry", func() SchedulerEngine {
		return singlePhaseStub{}
	})

	factory, err := GetSchedulerEngineFactory("test_scheduler_registry")
	require.NoError(t, err)
	assert.Equal(t, model.Phase("working"), factory().CandidatePhase(time.Now()))
}

type singlePhaseStub struct{}

func (singlePhaseStub) CandidatePhase(time.Time) model.Phase { return model.Phase("working") }
