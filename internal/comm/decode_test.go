package comm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEvent_ValidPayload(t *testing.T) {
	now := time.Now()
	ev, err := decodeEvent([]byte(`{"camera_id":"cam01","timestamp":123.5,"detections":[{"class":"person","confidence":0.9}]}`), now)

	require.NoError(t, err)
	assert.Equal(t, "cam01", ev.CameraID)
	assert.Equal(t, 123.5, ev.Timestamp)
	assert.Equal(t, now, ev.ReceivedAt)
	require.Len(t, ev.Payload, 1)
	assert.Equal(t, "person", ev.Payload[0]["class"])
}

func TestDecodeEvent_EmptyDetectionsArray(t *testing.T) {
	now := time.Now()
	ev, err := decodeEvent([]byte(`{"camera_id":"cam01","timestamp":123.5,"detections":[]}`), now)

	require.NoError(t, err)
	assert.Len(t, ev.Payload, 0)
}

func TestDecodeEvent_MalformedJSON(t *testing.T) {
	_, err := decodeEvent([]byte(`{not json`), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, errDecodeFailed)
}

func TestDecodeEvent_MissingCameraID(t *testing.T) {
	_, err := decodeEvent([]byte(`{"timestamp":1}`), time.Now())
	require.Error(t, err)
}
