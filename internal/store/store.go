// Package store implements the in-memory edge-event store.
package store

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"sitebridge.dev/phasebridge/internal/model"
)

// Store holds the latest event per camera. At most one event is retained
// per camera; a newer event atomically supersedes the older one. It is
// safe for concurrent use: ingestion callbacks on transport goroutines call
// AddEvent while the workflow loop calls Snapshot, possibly concurrently.
type Store struct {
	mu           sync.RWMutex
	events       map[string]model.EdgeEvent
	lastEventAt  time.Time
	hasLastEvent bool

	// MaxAge rejects events older than this at ingest time. Zero disables
	// the age check.
	MaxAge time.Duration

	// ClockSkewTolerance clamps a future-dated event's timestamp down to
	// ReceivedAt instead of rejecting it, when the skew is within this
	// bound. Zero disables clamping: every future-dated event is rejected.
	ClockSkewTolerance time.Duration

	log *logrus.Entry
}

// New creates an empty Store.
func New(maxAge, clockSkewTolerance time.Duration, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		events:             make(map[string]model.EdgeEvent),
		MaxAge:             maxAge,
		ClockSkewTolerance: clockSkewTolerance,
		log:                log.WithField("component", "edge_event_store"),
	}
}

// AddEvent accepts one normalized event. It rejects the event (no side
// effect, returns false) if now-event.Timestamp exceeds MaxAge, or if an
// event already stored for the same camera carries a strictly greater
// timestamp (ingestion runs on transport-owned goroutines with no
// ordering promised, so a late-arriving older event must not clobber a
// newer one). Otherwise it replaces the stored entry for event.CameraID
// and advances lastEventAt. The lock is held only for the map/field
// update, never while invoking a caller's callback.
func (s *Store) AddEvent(now time.Time, ev model.EdgeEvent) bool {
	ts := time.Unix(0, int64(ev.Timestamp*float64(time.Second)))

	if s.MaxAge > 0 && now.Sub(ts) > s.MaxAge {
		s.log.WithFields(logrus.Fields{
			"camera_id": ev.CameraID,
			"age":       now.Sub(ts),
			"max_age":   s.MaxAge,
		}).Warn("rejecting event older than max age")
		return false
	}

	// Clamp small future skew to ReceivedAt rather than rejecting outright.
	if ts.After(now) {
		skew := ts.Sub(now)
		if s.ClockSkewTolerance > 0 && skew <= s.ClockSkewTolerance {
			ts = ev.ReceivedAt
			ev.Timestamp = float64(ts.UnixNano()) / float64(time.Second)
		} else if s.ClockSkewTolerance == 0 || skew > s.ClockSkewTolerance {
			s.log.WithFields(logrus.Fields{
				"camera_id": ev.CameraID,
				"skew":      skew,
			}).Warn("rejecting event timestamped too far in the future")
			return false
		}
	}

	s.mu.Lock()
	if existing, ok := s.events[ev.CameraID]; ok && existing.Timestamp > ev.Timestamp {
		s.mu.Unlock()
		s.log.WithFields(logrus.Fields{
			"camera_id":   ev.CameraID,
			"incoming_ts": ev.Timestamp,
			"stored_ts":   existing.Timestamp,
		}).Debug("ignoring event older than the one already stored")
		return false
	}

	s.events[ev.CameraID] = ev
	s.lastEventAt = now
	s.hasLastEvent = true
	s.mu.Unlock()

	return true
}

// Snapshot returns a consistent copy of the current per-camera latest
// events, safe to iterate without holding the store's lock.
func (s *Store) Snapshot() []model.EdgeEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.EdgeEvent, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev)
	}
	return out
}

// Len returns the number of cameras currently tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// LastEventAge returns the time elapsed since the most recent successful
// ingest across all cameras, or +Inf if nothing has ever been ingested.
func (s *Store) LastEventAge(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.hasLastEvent {
		return time.Duration(math.MaxInt64)
	}
	return now.Sub(s.lastEventAt)
}

// Clear removes the stored event for one camera.
func (s *Store) Clear(cameraID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.events, cameraID)
}

// ClearAll empties the store. Does not reset lastEventAt: staleness
// detection tracks ingest activity, not store occupancy.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string]model.EdgeEvent)
}
