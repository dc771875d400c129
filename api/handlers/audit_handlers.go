package handlers

import (
	"net/http"
	"strconv"

	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

type AuditHandler struct {
	audits store.AuditStore
	logger *utils.Logger
}

func NewAuditHandler(audits store.AuditStore, logger *utils.Logger) *AuditHandler {
	return &AuditHandler{audits: audits, logger: logger}
}

// List returns the newest audit entries, most recent first.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := h.audits.ListActions(r.Context(), limit)
	if err != nil {
		h.logger.Errorf("audit: list failed: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}
