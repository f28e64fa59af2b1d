package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forecastlab/verdict-cli/internal/model"
)

func TestMapOutcome(t *testing.T) {
	cases := []struct {
		decision model.Decision
		score    int
		want     model.Outcome
	}{
		{model.DecisionTrue, 10, model.OutcomeMaturedTrue},
		{model.DecisionTrue, 9, model.OutcomeMaturedTrue},
		{model.DecisionTrue, 8, model.OutcomeMaturedMostlyTrue},
		{model.DecisionTrue, 7, model.OutcomeMaturedMostlyTrue},
		{model.DecisionFalse, 0, model.OutcomeMaturedFalse},
		{model.DecisionFalse, 2, model.OutcomeMaturedFalse},
		{model.DecisionFalse, 3, model.OutcomeMaturedMostlyFalse},
		{model.DecisionInconclusive, 5, model.OutcomeMissingContext},
	}
	for _, tc := range cases {
		got := MapOutcome(model.Judgment{Decision: tc.decision, Score: tc.score}, 9, 2)
		assert.Equal(t, tc.want, got, "%s score %d", tc.decision, tc.score)
	}
}

func TestBuildProof_JoinsSections(t *testing.T) {
	proof := BuildProof(model.Judgment{
		Summary:   "It happened.",
		Evidence:  "Reported by two outlets.",
		Reasoning: "Evidence is direct and dated before the deadline.",
	})
	assert.Equal(t, "It happened.\n\nReported by two outlets.\n\nReasoning: Evidence is direct and dated before the deadline.", proof)
}

func TestBuildProof_SkipsEmptySections(t *testing.T) {
	proof := BuildProof(model.Judgment{Summary: "It happened."})
	assert.Equal(t, "It happened.", proof)
}

func TestTruncateProof(t *testing.T) {
	short := strings.Repeat("a", model.MaxProofLen)
	assert.Equal(t, short, TruncateProof(short))

	long := strings.Repeat("b", model.MaxProofLen+50)
	got := TruncateProof(long)
	assert.Len(t, []rune(got), model.MaxProofLen)
	assert.True(t, strings.HasSuffix(got, "..."))

	// idempotent
	assert.Equal(t, got, TruncateProof(got))
}

func TestPickSources_FirstTwoWellFormed(t *testing.T) {
	results := []model.SearchResult{
		{URL: "not a url", Title: "junk"},
		{URL: "ftp://example.com/file", Title: "wrong scheme"},
		{URL: "https://example.com/a", Title: "first"},
		{URL: "http://example.com/b", Title: "second"},
		{URL: "https://example.com/c", Title: "third"},
	}
	sources := PickSources(model.Judgment{Decision: model.DecisionTrue}, results)

	assert.Len(t, sources, 2)
	assert.Equal(t, "https://example.com/a", sources[0].URL)
	assert.Equal(t, "http://example.com/b", sources[1].URL)
}

func TestPickSources_InconclusiveGetsNone(t *testing.T) {
	results := []model.SearchResult{{URL: "https://example.com/a"}}
	assert.Empty(t, PickSources(model.Judgment{Decision: model.DecisionInconclusive}, results))
}
