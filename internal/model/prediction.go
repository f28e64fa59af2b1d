package model

import "time"

// GoalSlice is a half-open index range over a post's text that identifies
// the claim substring. Offsets are UTF-16 code units, matching the upstream
// parser that produced them. SourcePostID, when set, points at a different
// post than the one the prediction was leased with.
type GoalSlice struct {
	Start        int     `json:"start"`
	End          int     `json:"end"`
	SourcePostID *string `json:"source_post_id,omitempty"`
}

// Prediction is one parsed claim produced by the upstream pipeline.
// The validator only ever reads predictions; it never mutates them.
type Prediction struct {
	ID                string
	SourcePostID      *string
	GoalSlices        []GoalSlice
	LLMConfidence     *float64 // 0..1
	PredictionQuality *float64 // 0..100
	Vagueness         *float64 // 0..1
}

// PredictionDetails carries the timeframe and filter metadata for a prediction.
type PredictionDetails struct {
	PredictionID               string
	PredictionContext          *string
	TimeframeStart             *time.Time
	TimeframeEnd               *time.Time
	TimeframeStatus            string
	FilterValidationConfidence *float64
	FilterValidationReasoning  *string
}

// TimeframeStatusMissing is the sentinel status for predictions whose
// timeframe could not be determined upstream. They are never validated.
const TimeframeStatusMissing = "missing"

// Post is the original scraped text a prediction slice may reference.
type Post struct {
	ID   string
	Text string
}

// LeasedPrediction is the tuple handed to a worker by the job leaser:
// the prediction, its details, and the source post (nil when the post
// row is absent).
type LeasedPrediction struct {
	Prediction Prediction
	Details    PredictionDetails
	Post       *Post
}
