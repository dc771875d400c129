package routegroups

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"vigil-triage/api/handlers"
)

type Guards struct {
	WithSession       func(http.HandlerFunc) http.HandlerFunc
	RequirePermission func(string) func(http.HandlerFunc) http.HandlerFunc
}

// SessionPerm wraps a handler in the session guard plus one permission
// check.
func (g Guards) SessionPerm(perm string, h http.HandlerFunc) http.HandlerFunc {
	return g.WithSession(g.RequirePermission(perm)(h))
}

func RegisterTriage(apiRouter chi.Router, g Guards, reports *handlers.ReportsHandler, predictions *handlers.PredictionsHandler, stream *handlers.StreamHandler, audit *handlers.AuditHandler) {
	apiRouter.Route("/reports", func(reportsRouter chi.Router) {
		reportsRouter.MethodFunc("POST", "/", g.SessionPerm("reports.submit", reports.Create))
		reportsRouter.MethodFunc("GET", "/{id}", g.SessionPerm("predictions.view", reports.Get))
		reportsRouter.MethodFunc("POST", "/{id}/reclassify", g.SessionPerm("predictions.write", reports.Reclassify))
		reportsRouter.MethodFunc("GET", "/{id}/prediction", g.SessionPerm("predictions.view", predictions.Get))
	})

	apiRouter.Route("/predictions", func(predictionsRouter chi.Router) {
		predictionsRouter.MethodFunc("GET", "/", g.SessionPerm("predictions.view", predictions.List))
		predictionsRouter.MethodFunc("GET", "/recent", g.SessionPerm("predictions.view", predictions.Recent))
	})

	apiRouter.MethodFunc("GET", "/stream", g.SessionPerm("predictions.view", stream.Events))
	apiRouter.MethodFunc("GET", "/audit", g.SessionPerm("sessions.manage", audit.List))
}
