package comm

import (
	"encoding/json"
	"fmt"
	"time"

	"sitebridge.dev/phasebridge/internal/model"
)

// wireEvent mirrors the JSON body documented for both the HTTP endpoint
// and the MQTT ingestion topic: {camera_id, timestamp, detections}.
// detections is a JSON array of per-object detection records.
type wireEvent struct {
	CameraID   string           `json:"camera_id"`
	Timestamp  float64          `json:"timestamp"`
	Detections []map[string]any `json:"detections"`
}

// decodeEvent parses a raw transport body into a normalized EdgeEvent,
// stamping ReceivedAt with now. Both the HTTP and MQTT adapters share this
// so payload semantics never drift between transports.
func decodeEvent(raw []byte, now time.Time) (model.EdgeEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.EdgeEvent{}, fmt.Errorf("%w: %v", errDecodeFailed, err)
	}
	if w.CameraID == "" {
		return model.EdgeEvent{}, fmt.Errorf("%w: missing camera_id", errDecodeFailed)
	}
	return model.EdgeEvent{
		CameraID:   w.CameraID,
		Timestamp:  w.Timestamp,
		ReceivedAt: now,
		Payload:    w.Detections,
	}, nil
}
