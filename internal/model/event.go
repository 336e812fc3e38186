package model

import (
	"time"

	"github.com/google/uuid"
)

// EdgeEvent is a normalized inference record pushed to the daemon by one
// camera. Payload is the detections array decoded from the transport's
// JSON body: one map per detected object (class/box/confidence).
type EdgeEvent struct {
	CameraID   string           `json:"camera_id"`
	Timestamp  float64          `json:"timestamp"` // epoch seconds, UTC
	ReceivedAt time.Time        `json:"received_at"`
	Payload    []map[string]any `json:"detections"`
}

// DispatchEvent is appended to a TaskContext's event queue by any task or
// engine during a tick, and forwarded to the named handlers by
// EventDispatchTask at the tick's end.
type DispatchEvent struct {
	ID        string         `json:"id"`
	Handlers  []string       `json:"handlers"`
	Data      map[string]any `json:"data"`
	Origin    string         `json:"origin"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewDispatchEvent builds a DispatchEvent stamped with a fresh correlation
// ID, ready to append to a TaskContext's queue.
func NewDispatchEvent(origin string, handlers []string, data map[string]any, now time.Time) DispatchEvent {
	return DispatchEvent{
		ID:        uuid.NewString(),
		Handlers:  handlers,
		Data:      data,
		Origin:    origin,
		CreatedAt: now,
	}
}

// TaskResult is the terminal outcome of a BaseTask.Run call.
type TaskResult struct {
	OK             bool
	Payload        map[string]any
	ContextUpdates map[string]any
}

// Sleep returns the next-interval sleep override carried in Payload, if the
// task set one via the "sleep" key.
func (r TaskResult) Sleep() (time.Duration, bool) {
	v, ok := r.Payload["sleep"]
	if !ok {
		return 0, false
	}
	switch s := v.(type) {
	case time.Duration:
		return s, true
	case float64:
		return time.Duration(s * float64(time.Second)), true
	case int:
		return time.Duration(s) * time.Second, true
	default:
		return 0, false
	}
}

// Merge shallow-merges another result's Payload into r, last-writer-wins,
// matching the "pipeline task collects the terminal TaskResult, merging
// payloads" rule.
func (r *TaskResult) Merge(other TaskResult) {
	if r.Payload == nil {
		r.Payload = make(map[string]any, len(other.Payload))
	}
	for k, v := range other.Payload {
		r.Payload[k] = v
	}
	r.OK = other.OK
}
