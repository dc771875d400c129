// Package appbootstrap wires the stores, pipeline, distribution hub and
// HTTP server together and runs them as one process.
package appbootstrap

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vigil-triage/api"
	"vigil-triage/config"
	"vigil-triage/core/store"
	"vigil-triage/core/utils"
)

// Run opens the database, composes the runtime and serves until SIGINT or
// SIGTERM.
func Run(cfg *config.AppConfig, logger *utils.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.NewDB(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := store.ApplyMigrations(ctx, db, cfg.DBDriver, logger); err != nil {
		return err
	}

	comp, err := composeRuntime(cfg, db, logger)
	if err != nil {
		return err
	}
	server := api.NewServer(comp.serverDeps)

	comp.resolver.StartWithContext(ctx)
	if err := comp.scheduler.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return comp.hub.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx)
	})

	err = g.Wait()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	comp.resolver.StopWithContext(stopCtx)
	comp.scheduler.StopWithContext(stopCtx)

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
