// Package auth manages reviewer sessions. Identity itself is asserted
// upstream; a session here just binds a principal and its roles to an
// opaque token for the duration of a review shift.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"

	"vigil-triage/core/rbac"
	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

type contextKey string

// SessionContextKey carries the *store.SessionRecord through request
// handling.
const SessionContextKey contextKey = "vigil.session"

var (
	ErrSessionExpired = errors.New("session expired")
	ErrUnknownRole    = errors.New("unknown role")
)

func SessionFromContext(ctx context.Context) *store.SessionRecord {
	rec, _ := ctx.Value(SessionContextKey).(*store.SessionRecord)
	return rec
}

type SessionManager struct {
	sessions store.SessionsStore
	ttl      time.Duration
	logger   *utils.Logger
}

func NewSessionManager(sessions store.SessionsStore, ttl time.Duration, logger *utils.Logger) *SessionManager {
	return &SessionManager{sessions: sessions, ttl: ttl, logger: logger}
}

func (m *SessionManager) Create(ctx context.Context, principal string, roles []string, ip, userAgent string) (*store.SessionRecord, error) {
	for _, role := range roles {
		if !rbac.KnownRole(role) {
			return nil, ErrUnknownRole
		}
	}
	now := utils.NowUTC()
	rec := &store.SessionRecord{
		ID:         uuid.Must(uuid.NewV4()).String(),
		Principal:  principal,
		Roles:      roles,
		IP:         ip,
		UserAgent:  userAgent,
		CreatedAt:  now,
		LastSeenAt: now,
		ExpiresAt:  now.Add(m.ttl),
	}
	if err := m.sessions.SaveSession(ctx, rec); err != nil {
		return nil, err
	}
	m.logger.Infof("auth: session %s created for %s", rec.ID, principal)
	return rec, nil
}

func (m *SessionManager) Get(ctx context.Context, id string) (*store.SessionRecord, error) {
	rec, err := m.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Expired(utils.NowUTC()) {
		m.sessions.DeleteSession(ctx, id)
		return nil, ErrSessionExpired
	}
	return rec, nil
}

// Refresh slides the session's expiry forward on activity.
func (m *SessionManager) Refresh(ctx context.Context, rec *store.SessionRecord) error {
	now := utils.NowUTC()
	rec.LastSeenAt = now
	rec.ExpiresAt = now.Add(m.ttl)
	return m.sessions.UpdateSessionActivity(ctx, rec.ID, rec.LastSeenAt, rec.ExpiresAt)
}

func (m *SessionManager) Delete(ctx context.Context, id string) error {
	return m.sessions.DeleteSession(ctx, id)
}

func (m *SessionManager) PurgeExpired(ctx context.Context) (int, error) {
	return m.sessions.DeleteExpiredSessions(ctx, utils.NowUTC())
}
