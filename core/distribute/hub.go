// Package distribute fans reconciled prediction state out to subscribed
// reviewer sessions. Each session runs its own reconciliation loop so a
// slow consumer never holds back another.
package distribute

import (
	"context"
	"sync"

	"vigil-triage/config"
	"vigil-triage/core/reconcile"
	"vigil-triage/core/risk"
	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

type eventKind int

const (
	eventLocal eventKind = iota
	eventSnapshot
)

type event struct {
	kind     eventKind
	local    *store.PredictionRecord
	snapshot store.Snapshot
}

// Session is one attached reviewer. Events flow through a single loop
// goroutine into the session's reconciler; reads take the lock.
type Session struct {
	id      string
	events  chan event
	updates chan reconcile.ViewModel
	done    chan struct{}

	mu  sync.RWMutex
	rec *reconcile.Reconciler
}

// Updates delivers reconciled views as they change. Under pressure the
// channel coalesces by report, so the latest update per report always gets
// through even when another report bursts.
func (s *Session) Updates() <-chan reconcile.ViewModel {
	return s.updates
}

func (s *Session) View(reportID string) *reconcile.ViewModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.View(reportID)
}

func (s *Session) Recent(n int) ([]reconcile.ViewModel, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.Recent(n)
}

func (s *Session) All(tier *risk.Tier) []reconcile.ViewModel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec.All(tier)
}

func (s *Session) loop() {
	defer close(s.updates)
	for {
		select {
		case <-s.done:
			return
		case ev := <-s.events:
			var view *reconcile.ViewModel
			s.mu.Lock()
			switch ev.kind {
			case eventLocal:
				view = s.rec.ApplyLocal(ev.local)
			case eventSnapshot:
				view = s.rec.ApplySnapshot(ev.snapshot)
			}
			s.mu.Unlock()
			if view != nil {
				s.push(*view)
			}
		}
	}
}

func (s *Session) push(view reconcile.ViewModel) {
	select {
	case s.updates <- view:
		return
	default:
	}
	// Full buffer: updates this view supersedes collapse into it; the
	// oldest queued update goes only when every report differs.
	queued := make([]reconcile.ViewModel, 0, cap(s.updates))
	drained := false
	for !drained {
		select {
		case ev := <-s.updates:
			if ev.ReportID != view.ReportID {
				queued = append(queued, ev)
			}
		default:
			drained = true
		}
	}
	if len(queued) == cap(s.updates) {
		queued = queued[1:]
	}
	queued = append(queued, view)
	for _, ev := range queued {
		select {
		case s.updates <- ev:
		default:
			return
		}
	}
}

func (s *Session) deliver(ev event) {
	select {
	case <-s.done:
	case s.events <- ev:
	}
}

// Hub owns the attached sessions and pumps the store's change feed into
// each of them.
type Hub struct {
	cfg    config.DistributionConfig
	feed   *store.Feed
	logger *utils.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewHub(cfg config.DistributionConfig, feed *store.Feed, logger *utils.Logger) *Hub {
	return &Hub{
		cfg:      cfg,
		feed:     feed,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Attach registers a reviewer session and starts its reconciliation loop.
// Attaching an already attached id returns the existing session.
func (h *Hub) Attach(sessionID string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.sessions[sessionID]; ok {
		return s
	}
	s := &Session{
		id:      sessionID,
		events:  make(chan event, h.cfg.EffectiveSubscriberBuffer()),
		updates: make(chan reconcile.ViewModel, h.cfg.EffectiveSubscriberBuffer()),
		done:    make(chan struct{}),
		rec:     reconcile.NewReconciler(),
	}
	h.sessions[sessionID] = s
	go s.loop()
	h.logger.Debugf("distribute: session %s attached", sessionID)
	return s
}

func (h *Hub) Get(sessionID string) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessions[sessionID]
}

func (h *Hub) Detach(sessionID string) {
	h.mu.Lock()
	s, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if ok {
		close(s.done)
		h.logger.Debugf("distribute: session %s detached", sessionID)
	}
}

// PublishLocal pushes a freshly computed prediction to every session ahead
// of the store write.
func (h *Hub) PublishLocal(rec *store.PredictionRecord) {
	if rec == nil {
		return
	}
	for _, s := range h.snapshotSessions() {
		s.deliver(event{kind: eventLocal, local: rec})
	}
}

// PublishSnapshot forwards one change-feed snapshot to every session.
func (h *Hub) PublishSnapshot(snap store.Snapshot) {
	for _, s := range h.snapshotSessions() {
		s.deliver(event{kind: eventSnapshot, snapshot: snap})
	}
}

// Run pumps the change feed until the context ends, then detaches every
// session.
func (h *Hub) Run(ctx context.Context) error {
	sub := h.feed.Subscribe(h.cfg.EffectiveSubscriberBuffer())
	defer sub.Close()
	h.logger.Infof("distribute: feed pump started")
	for {
		select {
		case <-ctx.Done():
			h.detachAll()
			return ctx.Err()
		case snap, ok := <-sub.C:
			if !ok {
				h.detachAll()
				return nil
			}
			h.PublishSnapshot(snap)
		}
	}
}

func (h *Hub) snapshotSessions() []*Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		out = append(out, s)
	}
	return out
}

func (h *Hub) detachAll() {
	h.mu.Lock()
	sessions := h.sessions
	h.sessions = make(map[string]*Session)
	h.mu.Unlock()
	for _, s := range sessions {
		close(s.done)
	}
}

// SessionCount reports attached sessions, for health reporting.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}
