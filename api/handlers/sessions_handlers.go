package handlers

import (
	"net"
	"net/http"
	"strings"

	"vigil-triage/core/auth"
	"vigil-triage/core/distribute"
	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

type SessionsHandler struct {
	sessionManager *auth.SessionManager
	hub            *distribute.Hub
	audits         store.AuditStore
	logger         *utils.Logger
}

func NewSessionsHandler(sessionManager *auth.SessionManager, hub *distribute.Hub, audits store.AuditStore, logger *utils.Logger) *SessionsHandler {
	return &SessionsHandler{sessionManager: sessionManager, hub: hub, audits: audits, logger: logger}
}

type createSessionPayload struct {
	Principal string   `json:"principal"`
	Roles     []string `json:"roles"`
}

// Create opens a reviewer session and attaches it to the distribution hub.
// Identity is asserted upstream; only the role set is checked here.
func (h *SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload createSessionPayload
	if err := readJSON(r, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	payload.Principal = strings.TrimSpace(payload.Principal)
	if payload.Principal == "" || len(payload.Roles) == 0 {
		http.Error(w, "principal and roles required", http.StatusBadRequest)
		return
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	rec, err := h.sessionManager.Create(r.Context(), payload.Principal, payload.Roles, ip, r.UserAgent())
	if err != nil {
		if err == auth.ErrUnknownRole {
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}
		h.logger.Errorf("sessions: create failed: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	h.hub.Attach(rec.ID)
	if h.audits != nil {
		h.audits.LogAction(r.Context(), payload.Principal, "session_created", "session="+rec.ID)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": rec.ID,
		"expires_at": rec.ExpiresAt,
		"roles":      rec.Roles,
	})
}

func (h *SessionsHandler) DeleteCurrent(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	h.hub.Detach(sess.ID)
	if err := h.sessionManager.Delete(r.Context(), sess.ID); err != nil {
		h.logger.Errorf("sessions: delete failed: %v", err)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}
	if h.audits != nil {
		h.audits.LogAction(r.Context(), sess.Principal, "session_closed", "session="+sess.ID)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}
