package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEdgeEventsIngestedTotal_IncrementsPerLabel(t *testing.T) {
	EdgeEventsIngestedTotal.Reset()

	EdgeEventsIngestedTotal.WithLabelValues("cam-1", "http").Inc()
	EdgeEventsIngestedTotal.WithLabelValues("cam-1", "http").Inc()
	EdgeEventsIngestedTotal.WithLabelValues("cam-2", "mqtt").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(EdgeEventsIngestedTotal.WithLabelValues("cam-1", "http")))
	assert.Equal(t, float64(1), testutil.ToFloat64(EdgeEventsIngestedTotal.WithLabelValues("cam-2", "mqtt")))
}

func TestCurrentPhase_GaugeTracksActivePhase(t *testing.T) {
	CurrentPhase.Reset()

	CurrentPhase.WithLabelValues("working").Set(1)
	CurrentPhase.WithLabelValues("non_working").Set(0)

	assert.Equal(t, float64(1), testutil.ToFloat64(CurrentPhase.WithLabelValues("working")))
	assert.Equal(t, float64(0), testutil.ToFloat64(CurrentPhase.WithLabelValues("non_working")))
}

func TestDispatchQueueDepth_SetAndRead(t *testing.T) {
	DispatchQueueDepth.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(DispatchQueueDepth))
}

func TestStaleWarningsTotal_IncrementsByMode(t *testing.T) {
	StaleWarningsTotal.Reset()

	StaleWarningsTotal.WithLabelValues("freeze").Inc()

	assert.Equal(t, float64(1), testutil.ToFloat64(StaleWarningsTotal.WithLabelValues("freeze")))
	assert.Equal(t, float64(0), testutil.ToFloat64(StaleWarningsTotal.WithLabelValues("unknown")))
}
