// Package maintenance runs the periodic housekeeping jobs: pruning
// superseded prediction history and dropping expired sessions.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"vigil-triage/config"
	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

type sessionPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

type Scheduler struct {
	cfg         config.MaintenanceConfig
	predictions store.PredictionsStore
	sessions    sessionPurger
	logger      *utils.Logger
	cron        *cron.Cron
}

func NewScheduler(cfg config.MaintenanceConfig, predictions store.PredictionsStore, sessions sessionPurger, logger *utils.Logger) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		predictions: predictions,
		sessions:    sessions,
		logger:      logger,
		cron:        cron.New(),
	}
}

func (s *Scheduler) Start() error {
	if !s.cfg.Enabled {
		s.logger.Infof("maintenance: disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.cfg.RetentionSpec, s.retentionPass); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.ResolveSpec, s.resolveCatchup); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Infof("maintenance: scheduled retention=%q resolve=%q", s.cfg.RetentionSpec, s.cfg.ResolveSpec)
	return nil
}

func (s *Scheduler) StopWithContext(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		s.logger.Infof("maintenance: stopped")
	case <-ctx.Done():
		s.logger.Errorf("maintenance: stop timed out: %v", ctx.Err())
	}
}

// resolveCatchup stamps server times on rows the fast resolver loop missed,
// for example rows written while the process was shutting down.
func (s *Scheduler) resolveCatchup() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	now := time.Now().UTC()
	n, err := s.predictions.ResolvePending(ctx, now.Add(-time.Minute), now)
	if err != nil {
		s.logger.Errorf("maintenance: resolve catchup failed: %v", err)
	} else if n > 0 {
		s.logger.Infof("maintenance: resolved %d aged prediction(s)", n)
	}
}

// retentionPass prunes superseded prediction history past the retention
// window and drops expired sessions. Current generations are never deleted.
func (s *Scheduler) retentionPass() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	pruned, err := s.predictions.PruneSuperseded(ctx, cutoff)
	if err != nil {
		s.logger.Errorf("maintenance: prune failed: %v", err)
	} else if pruned > 0 {
		s.logger.Infof("maintenance: pruned %d superseded prediction(s)", pruned)
	}

	purged, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		s.logger.Errorf("maintenance: session purge failed: %v", err)
	} else if purged > 0 {
		s.logger.Infof("maintenance: purged %d expired session(s)", purged)
	}
}
