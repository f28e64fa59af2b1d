package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/forecastlab/verdict-cli/internal/config"
	"github.com/forecastlab/verdict-cli/internal/db"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool sized for the
// worker count plus leasing head-room.
func NewPostgres(ctx context.Context, connString string, poolCfg config.PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(15)
	minConns := int32(2)
	if poolCfg.MaxConns > 0 {
		maxConns = poolCfg.MaxConns
	}
	if poolCfg.MinConns > 0 {
		minConns = poolCfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that manage
// their own transactions (the workers).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// postgresMigration creates the validator's output table and, for local
// development, the read-side tables owned by the upstream parser. The
// unique constraint on parsed_prediction_id is what makes result writes
// at-most-once across concurrent validators.
const postgresMigration = `
CREATE TABLE IF NOT EXISTS scraped_post (
	id   TEXT PRIMARY KEY,
	text TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS parsed_prediction (
	id                 TEXT PRIMARY KEY,
	source_post_id     TEXT REFERENCES scraped_post(id),
	goal_slices        JSONB,
	llm_confidence     DOUBLE PRECISION,
	prediction_quality DOUBLE PRECISION,
	vagueness          DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS parsed_prediction_details (
	parsed_prediction_id         TEXT PRIMARY KEY REFERENCES parsed_prediction(id),
	prediction_context           TEXT,
	timeframe_start              TIMESTAMPTZ,
	timeframe_end                TIMESTAMPTZ,
	timeframe_status             TEXT NOT NULL DEFAULT 'missing',
	filter_validation_confidence DOUBLE PRECISION,
	filter_validation_reasoning  TEXT
);

CREATE TABLE IF NOT EXISTS validation_result (
	id                   TEXT PRIMARY KEY,
	parsed_prediction_id TEXT NOT NULL UNIQUE REFERENCES parsed_prediction(id),
	outcome              TEXT NOT NULL,
	proof                TEXT NOT NULL,
	sources              JSONB NOT NULL DEFAULT '[]',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_prediction_details_timeframe_end
	ON parsed_prediction_details(timeframe_end);
CREATE INDEX IF NOT EXISTS idx_validation_result_outcome
	ON validation_result(outcome);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}
