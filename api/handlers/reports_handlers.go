package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"vigil-triage/core/auth"
	"vigil-triage/core/classify"
	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

type ReportsHandler struct {
	reports    store.ReportsStore
	classifier *classify.Service
	audits     store.AuditStore
	logger     *utils.Logger
}

func NewReportsHandler(reports store.ReportsStore, classifier *classify.Service, audits store.AuditStore, logger *utils.Logger) *ReportsHandler {
	return &ReportsHandler{reports: reports, classifier: classifier, audits: audits, logger: logger}
}

type createReportPayload struct {
	Description  string `json:"description"`
	Location     string `json:"location"`
	SubLocation  string `json:"sub_location"`
	CategoryType string `json:"category_type"`
	OccurredAt   string `json:"occurred_at"`
	Channel      string `json:"channel"`
}

// parseOccurredAt accepts the reporting form's day-first format or RFC 3339.
// Anything else yields the zero time, which downstream treats as unknown.
func parseOccurredAt(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse("02-01-2006 15:04", raw); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// Create stores a report and runs classification inline. The response
// carries the judgment as shown to observers; the durable write completes
// in the background.
func (h *ReportsHandler) Create(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	var payload createReportPayload
	if err := readJSON(r, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	now := time.Now().UTC()
	rep := &store.Report{
		ID:           uuid.Must(uuid.NewV4()).String(),
		Description:  strings.TrimSpace(payload.Description),
		Location:     payload.Location,
		SubLocation:  payload.SubLocation,
		CategoryType: payload.CategoryType,
		OccurredAt:   parseOccurredAt(payload.OccurredAt),
		Channel:      payload.Channel,
		CreatedAt:    now,
	}
	if sess != nil {
		rep.ReporterRef = sess.Principal
	}
	if err := h.reports.CreateReport(r.Context(), rep); err != nil {
		h.logger.Errorf("reports: create failed: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	rec, err := h.classifier.Classify(r.Context(), rep)
	if err != nil {
		h.respondClassifyError(w, rep.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"report":     rep,
		"prediction": rec,
	})
}

func (h *ReportsHandler) Get(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reports.GetReport(r.Context(), urlParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Reclassify reruns the pipeline for a stored report under a fresh
// generation.
func (h *ReportsHandler) Reclassify(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")
	rec, err := h.classifier.Reclassify(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		h.respondClassifyError(w, id, err)
		return
	}
	if sess := auth.SessionFromContext(r.Context()); sess != nil && h.audits != nil {
		h.audits.LogAction(r.Context(), sess.Principal, "report_reclassified", "report="+id)
	}
	writeJSON(w, http.StatusOK, map[string]any{"prediction": rec})
}

func (h *ReportsHandler) respondClassifyError(w http.ResponseWriter, reportID string, err error) {
	switch {
	case errors.Is(err, classify.ErrInsufficientInput):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": "could not refresh prediction",
		})
	case errors.Is(err, classify.ErrSuperseded):
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "superseded by a newer classification",
		})
	default:
		h.logger.Errorf("reports: classify failed for %s: %v", reportID, err)
		http.Error(w, "server error", http.StatusInternalServerError)
	}
}
