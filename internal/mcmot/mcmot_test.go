package mcmot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPassthroughEngine_CopiesEventsAsLocalObjects(t *testing.T) {
	events := []map[string]any{{"camera_id": "cam01"}, {"camera_id": "cam02"}}

	global, local, err := PassthroughEngine{}.Track(events)

	assert.NoError(t, err)
	assert.Nil(t, global)
	assert.Equal(t, events, local)
}
