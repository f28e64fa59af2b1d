package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/forecastlab/verdict-cli/internal/db"
	"github.com/forecastlab/verdict-cli/internal/model"
)

// InsertResult writes the validation result unless one already exists for
// the prediction. ON CONFLICT DO NOTHING makes the duplicate-write race
// between workers a silent no-op: the unique constraint decides the winner.
func (s *PostgresStore) InsertResult(ctx context.Context, q db.Querier, r *model.ValidationResult) (bool, error) {
	sources := r.Sources
	if sources == nil {
		sources = []model.Source{}
	}
	sourcesJSON, err := json.Marshal(sources)
	if err != nil {
		return false, eris.Wrap(err, "postgres: marshal sources")
	}

	tag, err := q.Exec(ctx,
		`INSERT INTO validation_result (id, parsed_prediction_id, outcome, proof, sources, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (parsed_prediction_id) DO NOTHING`,
		r.ID, r.PredictionID, string(r.Outcome), r.Proof, sourcesJSON, r.CreatedAt,
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert result for %s", r.PredictionID)
	}
	return tag.RowsAffected() > 0, nil
}

// GetPostText fetches a post's text by id for cross-post goal slices.
func (s *PostgresStore) GetPostText(ctx context.Context, q db.Querier, postID string) (string, bool, error) {
	var text string
	err := q.QueryRow(ctx, `SELECT text FROM scraped_post WHERE id = $1`, postID).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, eris.Wrapf(err, "postgres: get post %s", postID)
	}
	return text, true, nil
}
