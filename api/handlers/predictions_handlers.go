package handlers

import (
	"net/http"
	"strconv"

	"vigil-triage/config"
	"vigil-triage/core/auth"
	"vigil-triage/core/distribute"
	"vigil-triage/core/reconcile"
	"vigil-triage/core/risk"
	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

type PredictionsHandler struct {
	predictions store.PredictionsStore
	hub         *distribute.Hub
	cfg         config.DistributionConfig
	logger      *utils.Logger
}

func NewPredictionsHandler(predictions store.PredictionsStore, hub *distribute.Hub, cfg config.DistributionConfig, logger *utils.Logger) *PredictionsHandler {
	return &PredictionsHandler{predictions: predictions, hub: hub, cfg: cfg, logger: logger}
}

// Get returns the prediction for one report as this session sees it. The
// reconciled view is preferred; the store answers for reports the session
// has not observed yet.
func (h *PredictionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	reportID := urlParam(r, "id")
	if sess := auth.SessionFromContext(r.Context()); sess != nil {
		if hs := h.hub.Get(sess.ID); hs != nil {
			if view := hs.View(reportID); view != nil && view.Record != nil {
				writeJSON(w, http.StatusOK, view)
				return
			}
		}
	}
	rec, err := h.predictions.GetCurrent(r.Context(), reportID)
	if err != nil {
		h.logger.Errorf("predictions: get failed for %s: %v", reportID, err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	provenance := reconcile.ProvenancePendingLocal
	if rec.ServerTime != nil {
		provenance = reconcile.ProvenanceConfirmedRemote
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report_id":  reportID,
		"record":     rec,
		"provenance": provenance,
	})
}

// Recent returns the session's newest reconciled views plus how many older
// ones did not fit.
func (h *PredictionsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	hs := h.hub.Get(sess.ID)
	if hs == nil {
		hs = h.hub.Attach(sess.ID)
	}
	limit := h.cfg.EffectiveRecentLimit()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	items, overflow := hs.Recent(limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"items":    items,
		"overflow": overflow,
	})
}

// List returns every current prediction from the store, optionally filtered
// by tier, newest first.
func (h *PredictionsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := store.PredictionFilter{Limit: 100}
	if raw := r.URL.Query().Get("tier"); raw != "" {
		tier, err := risk.ParseTier(raw)
		if err != nil {
			http.Error(w, "unknown tier", http.StatusBadRequest)
			return
		}
		filter.Tier = &tier
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			filter.Offset = n
		}
	}
	items, err := h.predictions.ListCurrent(r.Context(), filter)
	if err != nil {
		h.logger.Errorf("predictions: list failed: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	total, err := h.predictions.CountCurrent(r.Context(), filter)
	if err != nil {
		h.logger.Errorf("predictions: count failed: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"total": total,
	})
}
