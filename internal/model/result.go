package model

import "time"

// Outcome is the final label written to storage for a validated prediction.
type Outcome string

const (
	OutcomeMaturedTrue        Outcome = "matured_true"
	OutcomeMaturedMostlyTrue  Outcome = "matured_mostly_true"
	OutcomeMaturedFalse       Outcome = "matured_false"
	OutcomeMaturedMostlyFalse Outcome = "matured_mostly_false"
	OutcomeMissingContext     Outcome = "missing_context"
	OutcomeInvalid            Outcome = "invalid"

	// OutcomeNotMatured exists for schema compatibility with the upstream
	// pipeline. The validator never writes it: unmatured predictions are
	// simply not leased.
	OutcomeNotMatured Outcome = "not_matured"
)

// SearchResult is a single organic result returned by the search adapter.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	PubDate string `json:"pub_date,omitempty"`
}

// Source is a search result whose URL has been verified well-formed.
// At most two sources accompany a validation result.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Excerpt string `json:"excerpt,omitempty"`
	PubDate string `json:"pub_date,omitempty"`
}

// MaxProofLen bounds the proof text stored with a validation result.
// Longer proofs are ellipsis-truncated.
const MaxProofLen = 700

// ValidationResult is the validator's output row. Exactly one exists per
// prediction; the unique constraint on PredictionID enforces this under
// concurrent workers.
type ValidationResult struct {
	ID           string
	PredictionID string
	Outcome      Outcome
	Proof        string
	Sources      []Source
	CreatedAt    time.Time
}

// Decision is the judge's three-way verdict before outcome mapping.
type Decision string

const (
	DecisionTrue         Decision = "TRUE"
	DecisionFalse        Decision = "FALSE"
	DecisionInconclusive Decision = "INCONCLUSIVE"
)

// Judgment is the parsed, score-reconciled reply from the result judge.
type Judgment struct {
	Decision            Decision
	Score               int // 0..10
	Summary             string
	Evidence            string
	Reasoning           string
	Sufficient          bool
	NextQuerySuggestion string
}
