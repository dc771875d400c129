package store

import (
	"context"
	"sync"
	"time"

	"vigil-triage/core/utils"
)

// Resolver stamps server_time on prediction rows the optimistic write left
// unresolved. Until the stamp lands, readers see the row as pending.
type Resolver struct {
	predictions PredictionsStore
	interval    time.Duration
	logger      *utils.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewResolver(predictions PredictionsStore, interval time.Duration, logger *utils.Logger) *Resolver {
	if interval <= 0 {
		interval = time.Second
	}
	return &Resolver{predictions: predictions, interval: interval, logger: logger}
}

func (r *Resolver) StartWithContext(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.wg.Add(1)
	go r.loop(runCtx)
	r.logger.Infof("resolver: started, interval=%s", r.interval)
}

func (r *Resolver) StopWithContext(ctx context.Context) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.running = false
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.logger.Infof("resolver: stopped")
	case <-ctx.Done():
		r.logger.Errorf("resolver: stop timed out: %v", ctx.Err())
	}
}

func (r *Resolver) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *Resolver) sweep(ctx context.Context) {
	now := time.Now().UTC()
	n, err := r.predictions.ResolvePending(ctx, now, now)
	if err != nil {
		if ctx.Err() == nil {
			r.logger.Errorf("resolver: sweep failed: %v", err)
		}
		return
	}
	if n > 0 {
		r.logger.Debugf("resolver: stamped %d prediction(s)", n)
	}
}
