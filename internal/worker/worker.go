// Package worker runs the lease-validate-commit loop. Each worker holds one
// transaction per prediction: the row lock taken by the lease query is the
// lease itself, so a crashed worker releases its prediction automatically.
package worker

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/forecastlab/verdict-cli/internal/cost"
	"github.com/forecastlab/verdict-cli/internal/db"
	"github.com/forecastlab/verdict-cli/internal/model"
	"github.com/forecastlab/verdict-cli/internal/store"
	"github.com/forecastlab/verdict-cli/internal/validator"
)

// Validator runs one leased prediction through the pipeline.
type Validator interface {
	Run(ctx context.Context, q db.Querier, lease *model.LeasedPrediction) (*model.ValidationResult, *validator.RunStats, error)
}

// Config tunes a worker loop.
type Config struct {
	Filters    store.LeaseFilters
	IdleSleep  time.Duration
	ErrorSleep time.Duration
}

// Worker repeatedly leases and validates predictions until its context is
// cancelled.
type Worker struct {
	id       int
	pool     db.Pool
	store    store.Store
	pipeline Validator
	tracker  *cost.Tracker
	costLog  *cost.Logger
	cfg      Config
}

// New creates a worker. costLog may be nil to disable cost logging.
func New(id int, pool db.Pool, st store.Store, pipeline Validator, tracker *cost.Tracker, costLog *cost.Logger, cfg Config) *Worker {
	return &Worker{
		id:       id,
		pool:     pool,
		store:    st,
		pipeline: pipeline,
		tracker:  tracker,
		costLog:  costLog,
		cfg:      cfg,
	}
}

// Run loops until ctx is cancelled. Every error is absorbed: the worker
// sleeps and retries rather than dying, since a transient database or API
// failure must not shrink the pool.
func (w *Worker) Run(ctx context.Context) error {
	log := zap.L().With(zap.Int("worker", w.id))
	log.Info("worker started")

	for {
		if ctx.Err() != nil {
			w.tracker.MarkWorker(w.id, "Stopped", false)
			log.Info("worker stopped")
			return nil
		}

		worked, err := w.runOnce(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			log.Error("worker iteration failed", zap.Error(err))
			w.tracker.MarkWorker(w.id, "Error (retrying)", false)
			sleep(ctx, w.cfg.ErrorSleep)
		case !worked:
			w.tracker.MarkWorker(w.id, "Waiting (idle)", false)
			sleep(ctx, w.cfg.IdleSleep)
		}
	}
}

// runOnce leases at most one prediction and validates it. Returns false when
// the queue was empty.
func (w *Worker) runOnce(ctx context.Context) (bool, error) {
	// The stop signal only stops the loop. The lease transaction and the
	// LLM/search calls inside it run on a detached context so shutdown
	// never aborts an in-flight validation: the work commits, the cost is
	// recorded, and the prediction is not re-leased next run.
	ctx = context.WithoutCancel(ctx)

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "worker: begin tx")
	}

	lease, err := w.store.LeaseNext(ctx, tx, time.Now().UTC(), w.cfg.Filters)
	if err != nil {
		_ = tx.Rollback(ctx)
		return false, eris.Wrap(err, "worker: lease")
	}
	if lease == nil {
		if err := tx.Commit(ctx); err != nil {
			return false, eris.Wrap(err, "worker: commit empty lease")
		}
		return false, nil
	}

	w.tracker.MarkWorker(w.id, "Validating "+lease.Prediction.ID, true)

	result, stats, err := w.pipeline.Run(ctx, tx, lease)
	if err != nil {
		_ = tx.Rollback(ctx)
		return true, eris.Wrap(err, "worker: validate")
	}
	if err := tx.Commit(ctx); err != nil {
		return true, eris.Wrap(err, "worker: commit")
	}

	// Cost is recorded only after the commit, and only for the worker that
	// actually landed the result row. The loser of an insert race did spend
	// tokens, but double-counting a prediction would skew the per-outcome
	// totals that the historical reload depends on.
	if stats.Inserted {
		w.record(lease, result, stats)
	}
	return true, nil
}

func (w *Worker) record(lease *model.LeasedPrediction, result *model.ValidationResult, stats *validator.RunStats) {
	inTokens := stats.EnhancerInputTokens + stats.JudgeInputTokens
	outTokens := stats.EnhancerOutputTokens + stats.JudgeOutputTokens
	w.tracker.Record(result.Outcome, stats.SearchAPICalls, inTokens, outTokens)

	if w.costLog == nil {
		return
	}
	var predictionContext string
	if lease.Details.PredictionContext != nil {
		predictionContext = *lease.Details.PredictionContext
	}
	entry := cost.LogEntry{
		PredictionID:              lease.Prediction.ID,
		PredictionContext:         predictionContext,
		SearchAPICalls:            stats.SearchAPICalls,
		QueryEnhancerInputTokens:  stats.EnhancerInputTokens,
		QueryEnhancerOutputTokens: stats.EnhancerOutputTokens,
		ResultJudgeInputTokens:    stats.JudgeInputTokens,
		ResultJudgeOutputTokens:   stats.JudgeOutputTokens,
		TotalInputTokens:          inTokens,
		TotalOutputTokens:         outTokens,
		Outcome:                   string(result.Outcome),
		Timestamp:                 time.Now().UTC(),
	}
	if err := w.costLog.Append(entry); err != nil {
		zap.L().Warn("cost log append failed", zap.Error(err))
	}
}

// sleep waits for d or until ctx is cancelled, whichever comes first.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
