package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vigil-triage/config"
	"vigil-triage/core/auth"
	"vigil-triage/core/distribute"
	"vigil-triage/core/reconcile"
	"vigil-triage/core/utils"
)

const streamHeartbeat = 25 * time.Second

type StreamHandler struct {
	hub    *distribute.Hub
	cfg    config.DistributionConfig
	logger *utils.Logger
}

func NewStreamHandler(hub *distribute.Hub, cfg config.DistributionConfig, logger *utils.Logger) *StreamHandler {
	return &StreamHandler{hub: hub, cfg: cfg, logger: logger}
}

// Events streams the session's reconciled views as server-sent events. The
// current recent set is replayed first so a reconnecting reviewer is whole
// before live updates resume.
func (h *StreamHandler) Events(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	hs := h.hub.Get(sess.ID)
	if hs == nil {
		hs = h.hub.Attach(sess.ID)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	replay, _ := hs.Recent(h.cfg.EffectiveRecentLimit())
	for i := len(replay) - 1; i >= 0; i-- {
		writeSSE(w, "prediction", replay[i])
	}
	flusher.Flush()

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case view, ok := <-hs.Updates():
			if !ok {
				return
			}
			writeSSE(w, "prediction", view)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, view reconcile.ViewModel) {
	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}
