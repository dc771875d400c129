package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"vigil-triage/api/handlers"
	"vigil-triage/api/routegroups"
	"vigil-triage/config"
	"vigil-triage/core/auth"
	"vigil-triage/core/classify"
	"vigil-triage/core/distribute"
	"vigil-triage/core/rbac"
	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

// BackgroundWorker is anything the server starts before listening and stops
// during shutdown.
type BackgroundWorker interface {
	StartWithContext(ctx context.Context)
	StopWithContext(ctx context.Context)
}

type ServerDeps struct {
	Config         *config.AppConfig
	DB             *sql.DB
	Reports        store.ReportsStore
	Predictions    store.PredictionsStore
	Sessions       store.SessionsStore
	Audits         store.AuditStore
	Classifier     *classify.Service
	Hub            *distribute.Hub
	Policy         *rbac.Policy
	SessionManager *auth.SessionManager
	Logger         *utils.Logger
}

type Server struct {
	cfg            *config.AppConfig
	db             *sql.DB
	reports        store.ReportsStore
	predictions    store.PredictionsStore
	sessions       store.SessionsStore
	audits         store.AuditStore
	classifier     *classify.Service
	hub            *distribute.Hub
	policy         *rbac.Policy
	sessionManager *auth.SessionManager
	logger         *utils.Logger
	activity       *sessionActivity

	httpServer *http.Server
}

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		cfg:            deps.Config,
		db:             deps.DB,
		reports:        deps.Reports,
		predictions:    deps.Predictions,
		sessions:       deps.Sessions,
		audits:         deps.Audits,
		classifier:     deps.Classifier,
		hub:            deps.Hub,
		policy:         deps.Policy,
		sessionManager: deps.SessionManager,
		logger:         deps.Logger,
		activity:       newSessionActivity(),
	}
	s.httpServer = &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

type routeHandlers struct {
	sessions    *handlers.SessionsHandler
	reports     *handlers.ReportsHandler
	predictions *handlers.PredictionsHandler
	stream      *handlers.StreamHandler
	audit       *handlers.AuditHandler
}

func (s *Server) newRouteHandlers() routeHandlers {
	return routeHandlers{
		sessions:    handlers.NewSessionsHandler(s.sessionManager, s.hub, s.audits, s.logger),
		reports:     handlers.NewReportsHandler(s.reports, s.classifier, s.audits, s.logger),
		predictions: handlers.NewPredictionsHandler(s.predictions, s.hub, s.cfg.Distribution, s.logger),
		stream:      handlers.NewStreamHandler(s.hub, s.cfg.Distribution, s.logger),
		audit:       handlers.NewAuditHandler(s.audits, s.logger),
	}
}

func (s *Server) Router() http.Handler {
	h := s.newRouteHandlers()
	r := chi.NewRouter()
	r.Use(s.recoverMiddleware, s.loggingMiddleware, s.jsonMiddleware)

	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.MethodFunc("GET", "/healthz", s.handleHealthz)
		apiRouter.MethodFunc("POST", "/sessions", h.sessions.Create)
		apiRouter.MethodFunc("DELETE", "/sessions/current", s.withSession(h.sessions.DeleteCurrent))

		g := routegroups.Guards{
			WithSession:       s.withSession,
			RequirePermission: func(p string) func(http.HandlerFunc) http.HandlerFunc { return s.requirePermission(rbac.Permission(p)) },
		}
		routegroups.RegisterTriage(apiRouter, g, h.reports, h.predictions, h.stream, h.audit)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(ctx); err != nil {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":   status,
		"sessions": s.hub.SessionCount(),
	})
}

// Run serves until the context ends, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("api: listening on %s", s.cfg.ListenAddr)
		errCh <- s.httpServer.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("api: shutdown: %v", err)
		return err
	}
	s.logger.Infof("api: stopped")
	return nil
}
