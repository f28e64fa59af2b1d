// Package store implements the Postgres persistence layer: the job-leasing
// protocol, the conditional result insert, and on-demand post lookups.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/forecastlab/verdict-cli/internal/db"
	"github.com/forecastlab/verdict-cli/internal/model"
)

// LeaseFilters are the quality gates applied inside the lease query.
// They mirror the in-memory pre-filter: a row the leaser hands out must
// also pass validator.PreFilter.
type LeaseFilters struct {
	MinFilterConfidence float64
	MinQuality          float64
	MinLLMConfidence    float64
	MaxVagueness        float64
}

// Store is the persistence surface the worker and pipeline depend on.
type Store interface {
	// LeaseNext selects and row-locks the oldest matured, unvalidated,
	// quality-passing prediction inside tx. Returns nil when the queue
	// is empty. The lock is held until tx ends.
	LeaseNext(ctx context.Context, tx pgx.Tx, now time.Time, f LeaseFilters) (*model.LeasedPrediction, error)

	// InsertResult writes a validation result if none exists for the
	// prediction. Returns false when another worker already won the race.
	InsertResult(ctx context.Context, q db.Querier, r *model.ValidationResult) (bool, error)

	// GetPostText fetches a post's text by id. The boolean reports
	// whether the post exists.
	GetPostText(ctx context.Context, q db.Querier, postID string) (string, bool, error)

	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
