package comm

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitebridge.dev/phasebridge/internal/model"
)

func TestHttpEdgeCommAdapter_AcceptsValidEvent(t *testing.T) {
	a := NewHttpEdgeCommAdapter(":0")

	var got model.EdgeEvent
	rec := httptest.NewRecorder()
	body, _ := json.Marshal(map[string]any{
		"camera_id":  "cam01",
		"timestamp":  float64(time.Now().Unix()),
		"detections": []map[string]any{{"class": "person", "confidence": 0.9}},
	})
	req := httptest.NewRequest(http.MethodPost, "/edge/events", bytes.NewReader(body))

	a.handleEdgeEvent(rec, req, func(ev model.EdgeEvent) bool { got = ev; return true }, logrus.NewEntry(logrus.New()))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "cam01", got.CameraID)
	require.Len(t, got.Payload, 1)
	assert.Equal(t, "person", got.Payload[0]["class"])
}

func TestHttpEdgeCommAdapter_RejectsMalformedJSON(t *testing.T) {
	a := NewHttpEdgeCommAdapter(":0")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/edge/events", bytes.NewReader([]byte("{not json")))

	a.handleEdgeEvent(rec, req, func(model.EdgeEvent) bool { return true }, logrus.NewEntry(logrus.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHttpEdgeCommAdapter_StoreRejectionReportsOkFalse(t *testing.T) {
	a := NewHttpEdgeCommAdapter(":0")

	rec := httptest.NewRecorder()
	body, _ := json.Marshal(map[string]any{
		"camera_id":  "cam01",
		"timestamp":  float64(time.Now().Unix()),
		"detections": []map[string]any{},
	})
	req := httptest.NewRequest(http.MethodPost, "/edge/events", bytes.NewReader(body))

	a.handleEdgeEvent(rec, req, func(model.EdgeEvent) bool { return false }, logrus.NewEntry(logrus.New()))

	assert.Equal(t, http.StatusOK, rec.Code, "age/order-rejected events still get 200 to avoid edge retry storms")
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["ok"])
}

func TestHttpEdgeCommAdapter_StartTwiceFails(t *testing.T) {
	a := NewHttpEdgeCommAdapter(":0")
	require.NoError(t, a.StartEventIngestion(func(model.EdgeEvent) bool { return true }))
	t.Cleanup(func() { _ = a.Stop() })

	err := a.StartEventIngestion(func(model.EdgeEvent) bool { return true })
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestHttpEdgeCommAdapter_StopIsIdempotent(t *testing.T) {
	a := NewHttpEdgeCommAdapter(":0")
	require.NoError(t, a.StartEventIngestion(func(model.EdgeEvent) bool { return true }))

	assert.NoError(t, a.Stop())
	assert.NoError(t, a.Stop())
}

func TestHttpEdgeCommAdapter_PublishPhaseAlwaysSucceeds(t *testing.T) {
	a := NewHttpEdgeCommAdapter(":0")
	assert.True(t, a.PublishPhase(model.Phase("working"), time.Now()))
}
