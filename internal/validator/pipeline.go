package validator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/forecastlab/verdict-cli/internal/config"
	"github.com/forecastlab/verdict-cli/internal/db"
	"github.com/forecastlab/verdict-cli/internal/model"
)

// ResultStore is the slice of the persistence layer the pipeline needs.
type ResultStore interface {
	PostFetcher
	InsertResult(ctx context.Context, q db.Querier, r *model.ValidationResult) (bool, error)
}

// RunStats is the per-prediction usage accounting handed back to the worker,
// which records it in the cost tracker and log after the lease commits.
type RunStats struct {
	SearchAPICalls       int
	EnhancerInputTokens  int
	EnhancerOutputTokens int
	JudgeInputTokens     int
	JudgeOutputTokens    int

	// Inserted reports whether this run's result row actually landed.
	// False means another worker validated the prediction first; the
	// cost of the duplicate work is still counted.
	Inserted bool
}

// Pipeline runs one leased prediction through every validation stage and
// persists the outcome inside the caller's transaction.
type Pipeline struct {
	cfg       config.ValidatorConfig
	store     ResultStore
	prefilter *PreFilter
	enhancer  *Enhancer
	searcher  *Searcher
	judge     *Judge
}

// NewPipeline assembles a Pipeline from its stages.
func NewPipeline(cfg config.ValidatorConfig, store ResultStore, prefilter *PreFilter, enhancer *Enhancer, searcher *Searcher, judge *Judge) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		store:     store,
		prefilter: prefilter,
		enhancer:  enhancer,
		searcher:  searcher,
		judge:     judge,
	}
}

// Run validates one leased prediction. Stage failures after the pre-filter
// do not abort the lease: the prediction is persisted as invalid with the
// error message as proof, so a poison row cannot wedge the queue. Only a
// failed insert returns an error, which the caller turns into a rollback.
func (p *Pipeline) Run(ctx context.Context, q db.Querier, lease *model.LeasedPrediction) (*model.ValidationResult, *RunStats, error) {
	stats := &RunStats{}
	log := zap.L().With(zap.String("prediction_id", lease.Prediction.ID))

	if res := p.prefilter.Check(lease, time.Now().UTC()); !res.Accepted {
		log.Info("prediction rejected by pre-filter", zap.String("reason", res.Reason))
		return p.persist(ctx, q, lease, stats, model.OutcomeInvalid, res.Reason, nil)
	}

	outcome, proof, sources, err := p.validate(ctx, q, lease, stats)
	if err != nil {
		log.Warn("validation stage failed, persisting as invalid", zap.Error(err))
		return p.persist(ctx, q, lease, stats, model.OutcomeInvalid, "Validation error: "+err.Error(), nil)
	}

	log.Info("prediction validated",
		zap.String("outcome", string(outcome)),
		zap.Int("search_calls", stats.SearchAPICalls),
		zap.Int("sources", len(sources)))
	return p.persist(ctx, q, lease, stats, outcome, proof, sources)
}

// validate runs the evidence-gathering stages: goal extraction, query
// enhancement, search fan-out, judgment, and at most one refinement round.
func (p *Pipeline) validate(ctx context.Context, q db.Querier, lease *model.LeasedPrediction, stats *RunStats) (model.Outcome, string, []model.Source, error) {
	text, err := ExtractGoalText(ctx, q, p.store, lease)
	if err != nil {
		return "", "", nil, eris.Wrap(err, "pipeline: extract goal text")
	}
	if text == "" {
		return model.OutcomeInvalid, "Unable to extract prediction text", nil, nil
	}

	enh, err := p.enhancer.EnhanceMultiple(ctx, text, p.cfg.InitialQueries)
	if err != nil {
		return "", "", nil, err
	}
	stats.EnhancerInputTokens += enh.InputTokens
	stats.EnhancerOutputTokens += enh.OutputTokens

	results, calls, err := p.searcher.FanOut(ctx, enh.Queries)
	stats.SearchAPICalls += calls
	if err != nil {
		return "", "", nil, err
	}
	if len(results) == 0 {
		return model.OutcomeMissingContext, "No search results found", nil, nil
	}

	out, err := p.judge.Evaluate(ctx, text, results)
	if err != nil {
		return "", "", nil, err
	}
	stats.JudgeInputTokens += out.InputTokens
	stats.JudgeOutputTokens += out.OutputTokens
	jm := out.Judgment

	attempts := make([]PastAttempt, 0, len(enh.Queries)+1)
	for _, query := range enh.Queries {
		attempts = append(attempts, PastAttempt{Query: query, Reasoning: jm.NextQuerySuggestion})
	}

	for iter := 0; iter < p.cfg.MaxRefinementIterations && !jm.Sufficient && len(results) < p.cfg.MaxTotalResults; iter++ {
		ref, err := p.enhancer.Refine(ctx, text, attempts)
		if err != nil {
			return "", "", nil, err
		}
		stats.EnhancerInputTokens += ref.InputTokens
		stats.EnhancerOutputTokens += ref.OutputTokens

		more, calls, err := p.searcher.FanOut(ctx, []string{ref.Query})
		stats.SearchAPICalls += calls
		if err != nil {
			return "", "", nil, err
		}
		results = append(results, more...)
		if len(results) > p.cfg.MaxTotalResults {
			results = results[:p.cfg.MaxTotalResults]
		}

		out, err = p.judge.Evaluate(ctx, text, results)
		if err != nil {
			return "", "", nil, err
		}
		stats.JudgeInputTokens += out.InputTokens
		stats.JudgeOutputTokens += out.OutputTokens
		jm = out.Judgment

		attempts = append(attempts, PastAttempt{Query: ref.Query, Reasoning: jm.NextQuerySuggestion})
	}

	outcome := MapOutcome(jm, p.cfg.TrueScoreCut, p.cfg.FalseScoreCut)
	return outcome, BuildProof(jm), PickSources(jm, results), nil
}

// persist writes the result row and finishes the stats.
func (p *Pipeline) persist(ctx context.Context, q db.Querier, lease *model.LeasedPrediction, stats *RunStats, outcome model.Outcome, proof string, sources []model.Source) (*model.ValidationResult, *RunStats, error) {
	result := &model.ValidationResult{
		ID:           uuid.NewString(),
		PredictionID: lease.Prediction.ID,
		Outcome:      outcome,
		Proof:        TruncateProof(proof),
		Sources:      sources,
		CreatedAt:    time.Now().UTC(),
	}

	inserted, err := p.store.InsertResult(ctx, q, result)
	if err != nil {
		return nil, stats, eris.Wrap(err, "pipeline: insert result")
	}
	stats.Inserted = inserted
	if !inserted {
		zap.L().Debug("result already present, insert skipped",
			zap.String("prediction_id", lease.Prediction.ID))
	}
	return result, stats, nil
}
