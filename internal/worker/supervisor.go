package worker

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/forecastlab/verdict-cli/internal/config"
	"github.com/forecastlab/verdict-cli/internal/cost"
	"github.com/forecastlab/verdict-cli/internal/db"
	"github.com/forecastlab/verdict-cli/internal/store"
)

// Supervisor runs a fixed pool of workers and drains them on shutdown.
type Supervisor struct {
	workers []*Worker
}

// NewSupervisor builds n workers sharing the pool, store, pipeline, tracker
// and cost log.
func NewSupervisor(n int, pool db.Pool, st store.Store, pipeline Validator, tracker *cost.Tracker, costLog *cost.Logger, cfg Config) *Supervisor {
	workers := make([]*Worker, n)
	for i := range workers {
		workers[i] = New(i+1, pool, st, pipeline, tracker, costLog, cfg)
	}
	return &Supervisor{workers: workers}
}

// Run blocks until ctx is cancelled and every worker has drained. A worker
// mid-validation finishes its current prediction; the lease transaction is
// never abandoned half-committed.
func (s *Supervisor) Run(ctx context.Context) error {
	zap.L().Info("starting workers", zap.Int("count", len(s.workers)))

	go func() {
		<-ctx.Done()
		// Quiet the log stream while workers drain so the final status
		// output stays readable.
		config.QuietLogs()
	}()

	g, gctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}
	return g.Wait()
}
