package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/forecastlab/verdict-cli/internal/model"
)

// leaseQuery selects the oldest matured, unvalidated, quality-passing
// prediction and locks its row. SKIP LOCKED hides in-flight leases from
// other workers; the NOT EXISTS clause hides anything already validated.
// NULL quality fields pass every gate.
const leaseQuery = `
SELECT p.id, p.source_post_id, p.goal_slices,
       p.llm_confidence, p.prediction_quality, p.vagueness,
       d.prediction_context, d.timeframe_start, d.timeframe_end,
       d.timeframe_status, d.filter_validation_confidence, d.filter_validation_reasoning,
       s.id, s.text
FROM parsed_prediction p
JOIN parsed_prediction_details d ON d.parsed_prediction_id = p.id
LEFT JOIN scraped_post s ON s.id = p.source_post_id
WHERE d.timeframe_end IS NOT NULL
  AND d.timeframe_end <= $1
  AND d.timeframe_status <> 'missing'
  AND (d.timeframe_start IS NULL OR d.timeframe_start <= d.timeframe_end)
  AND (d.filter_validation_confidence IS NULL OR d.filter_validation_confidence >= $2)
  AND (p.prediction_quality IS NULL OR p.prediction_quality >= $3)
  AND (p.llm_confidence IS NULL OR p.llm_confidence >= $4)
  AND (p.vagueness IS NULL OR p.vagueness <= $5)
  AND NOT EXISTS (
    SELECT 1 FROM validation_result v WHERE v.parsed_prediction_id = p.id
  )
ORDER BY d.timeframe_end ASC
LIMIT 1
FOR UPDATE OF p SKIP LOCKED`

func (s *PostgresStore) LeaseNext(ctx context.Context, tx pgx.Tx, now time.Time, f LeaseFilters) (*model.LeasedPrediction, error) {
	var (
		lease      model.LeasedPrediction
		slicesJSON []byte
		postID     *string
		postText   *string
	)

	err := tx.QueryRow(ctx, leaseQuery,
		now, f.MinFilterConfidence, f.MinQuality, f.MinLLMConfidence, f.MaxVagueness,
	).Scan(
		&lease.Prediction.ID,
		&lease.Prediction.SourcePostID,
		&slicesJSON,
		&lease.Prediction.LLMConfidence,
		&lease.Prediction.PredictionQuality,
		&lease.Prediction.Vagueness,
		&lease.Details.PredictionContext,
		&lease.Details.TimeframeStart,
		&lease.Details.TimeframeEnd,
		&lease.Details.TimeframeStatus,
		&lease.Details.FilterValidationConfidence,
		&lease.Details.FilterValidationReasoning,
		&postID,
		&postText,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: lease next prediction")
	}

	lease.Details.PredictionID = lease.Prediction.ID

	if len(slicesJSON) > 0 {
		if err := json.Unmarshal(slicesJSON, &lease.Prediction.GoalSlices); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal goal slices for %s", lease.Prediction.ID)
		}
	}

	if postID != nil {
		p := &model.Post{ID: *postID}
		if postText != nil {
			p.Text = *postText
		}
		lease.Post = p
	}

	return &lease, nil
}
