package comm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"sitebridge.dev/phasebridge/internal/logging"
	"sitebridge.dev/phasebridge/internal/metrics"
	"sitebridge.dev/phasebridge/internal/model"
)

// HttpEdgeCommAdapter listens on a port and accepts POST /edge/events,
// decoding inbound bodies into EdgeEvents. Phase publish only records the
// last phase, since plain HTTP has no subscriber to push a retained
// value to; it still satisfies the Adapter contract so it can serve as
// PHASE_PUBLISH_BACKEND's default (same-instance) target.
type HttpEdgeCommAdapter struct {
	Addr string

	mu      sync.Mutex
	server  *http.Server
	started atomic.Bool
	stopped atomic.Bool

	lastPublished atomic.Value // model.Phase
}

// NewHttpEdgeCommAdapter creates an adapter bound to addr (e.g. ":8090").
func NewHttpEdgeCommAdapter(addr string) *HttpEdgeCommAdapter {
	return &HttpEdgeCommAdapter{Addr: addr}
}

func (a *HttpEdgeCommAdapter) StartEventIngestion(onEvent EventHandler) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	log := logging.L().WithField("component", "http_comm_adapter")

	mux := http.NewServeMux()
	mux.HandleFunc("/edge/events", func(w http.ResponseWriter, r *http.Request) {
		a.handleEdgeEvent(w, r, onEvent, log)
	})

	a.mu.Lock()
	a.server = &http.Server{
		Addr:         a.Addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	server := a.server
	a.mu.Unlock()

	log.WithField("addr", a.Addr).Info("starting edge event ingestion server")

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("edge event ingestion server error")
		}
	}()

	return nil
}

func (a *HttpEdgeCommAdapter) handleEdgeEvent(w http.ResponseWriter, r *http.Request, onEvent EventHandler, log *logrus.Entry) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		metrics.EdgeEventsRejectedTotal.WithLabelValues("http", "read_error").Inc()
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "reason": "read error"})
		return
	}

	ev, err := decodeEvent(body, time.Now())
	if err != nil {
		metrics.EdgeEventsRejectedTotal.WithLabelValues("http", "decode_error").Inc()
		log.WithError(err).Warn("rejecting malformed edge event")
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "reason": err.Error()})
		return
	}

	accepted := onEvent(ev)
	if !accepted {
		metrics.EdgeEventsRejectedTotal.WithLabelValues("http", "store_rejected").Inc()
		writeJSON(w, http.StatusOK, map[string]any{"ok": false, "reason": "event not accepted by store"})
		return
	}
	metrics.EdgeEventsIngestedTotal.WithLabelValues(ev.CameraID, "http").Inc()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// PublishPhase has no broker to retain state against over plain HTTP; it
// records the last phase for introspection and always reports success,
// matching "never raises; always returns a bool".
func (a *HttpEdgeCommAdapter) PublishPhase(phase model.Phase, ts time.Time) bool {
	a.lastPublished.Store(phase)
	return true
}

func (a *HttpEdgeCommAdapter) Stop() error {
	if !a.stopped.CompareAndSwap(false, true) {
		return nil
	}
	a.mu.Lock()
	server := a.server
	a.mu.Unlock()
	if server == nil {
		return nil
	}

	log := logging.L().WithField("component", "http_comm_adapter")
	log.Info("stopping edge event ingestion server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("http comm adapter shutdown: %w", err)
	}
	return nil
}
