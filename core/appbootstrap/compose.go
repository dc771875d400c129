package appbootstrap

import (
	"database/sql"

	"vigil-triage/api"
	"vigil-triage/config"
	"vigil-triage/core/auth"
	"vigil-triage/core/classify"
	"vigil-triage/core/distribute"
	"vigil-triage/core/maintenance"
	"vigil-triage/core/oracle"
	"vigil-triage/core/rbac"
	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

type runtimeComposition struct {
	serverDeps api.ServerDeps
	hub        *distribute.Hub
	resolver   *store.Resolver
	scheduler  *maintenance.Scheduler
}

func composeRuntime(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) (*runtimeComposition, error) {
	feed := store.NewFeed()
	reports := store.NewReportsStore(db)
	predictions := store.NewPredictionsStore(db, feed)
	sessions := store.NewSessionsStore(db)
	audits := store.NewAuditStore(db)

	policy, err := rbac.NewPolicy()
	if err != nil {
		return nil, err
	}
	sessionManager := auth.NewSessionManager(sessions, cfg.EffectiveSessionTTL(), logger)
	hub := distribute.NewHub(cfg.Distribution, feed, logger)

	oracleClient := oracle.NewHTTPClient(cfg.Oracle.BaseURL, cfg.Oracle.Timeout(), logger)
	classifier := classify.NewService(classify.ServiceDeps{
		Oracle:      oracleClient,
		Fallback:    oracle.NewHeuristic(),
		Reports:     reports,
		Predictions: predictions,
		Audits:      audits,
		Publisher:   hub,
		Calibration: cfg.Calibration,
		WriteTO:     cfg.Oracle.WriteTimeout(),
		Logger:      logger,
	})

	resolver := store.NewResolver(predictions, cfg.Maintenance.ResolveInterval(), logger)
	scheduler := maintenance.NewScheduler(cfg.Maintenance, predictions, sessionManager, logger)

	return &runtimeComposition{
		serverDeps: api.ServerDeps{
			Config:         cfg,
			DB:             db,
			Reports:        reports,
			Predictions:    predictions,
			Sessions:       sessions,
			Audits:         audits,
			Classifier:     classifier,
			Hub:            hub,
			Policy:         policy,
			SessionManager: sessionManager,
			Logger:         logger,
		},
		hub:       hub,
		resolver:  resolver,
		scheduler: scheduler,
	}, nil
}
