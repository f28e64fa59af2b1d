package cost

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/forecastlab/verdict-cli/internal/model"
)

func TestTracker_RecordUpdatesBothSets(t *testing.T) {
	tr := NewTracker(DefaultRates())

	tr.Record(model.OutcomeMaturedTrue, 4, 1000, 500)
	tr.Record(model.OutcomeInvalid, 0, 200, 50)

	snap := tr.Snapshot()
	assert.Equal(t, int64(2), snap.Session.Validated)
	assert.Equal(t, int64(2), snap.Historical.Validated)
	assert.Equal(t, int64(4), snap.Session.SearchCalls)
	assert.Equal(t, int64(1200), snap.Session.InputTokens)
	assert.Equal(t, int64(550), snap.Session.OutputTokens)
	assert.Equal(t, int64(1), snap.Session.Outcomes["matured_true"])
	assert.Equal(t, int64(1), snap.Session.Outcomes["invalid"])
}

func TestTracker_DerivedCost(t *testing.T) {
	tr := NewTracker(Rates{
		SearchPlanMonthly:    100,
		SearchQueriesPerPlan: 35000,
		LLMInputPerMTok:      0.30,
		LLMOutputPerMTok:     2.50,
	})

	tr.Record(model.OutcomeMaturedMostlyTrue, 35000, 1_000_000, 2_000_000)

	snap := tr.Snapshot()
	assert.InDelta(t, 100.0, snap.Session.SearchCostUSD, 0.0001)
	assert.InDelta(t, 0.30+5.00, snap.Session.LLMCostUSD, 0.0001)
	assert.InDelta(t, 105.30, snap.Session.TotalCostUSD, 0.0001)
}

func TestTracker_LoadHistoricalSeedsOnlyHistorical(t *testing.T) {
	tr := NewTracker(DefaultRates())

	earlier := time.Now().UTC().Add(-48 * time.Hour)
	tr.LoadHistorical([]LogEntry{
		{Outcome: "matured_false", SearchAPICalls: 3, TotalInputTokens: 900, TotalOutputTokens: 100, Timestamp: earlier},
		{Outcome: "missing_context", SearchAPICalls: 2, TotalInputTokens: 400, TotalOutputTokens: 80, Timestamp: earlier.Add(time.Hour)},
	})

	snap := tr.Snapshot()
	assert.Equal(t, int64(0), snap.Session.Validated)
	assert.Equal(t, int64(2), snap.Historical.Validated)
	assert.Equal(t, int64(5), snap.Historical.SearchCalls)
	assert.True(t, snap.Historical.StartedAt.Equal(earlier))
}

func TestTracker_MarkWorker(t *testing.T) {
	tr := NewTracker(DefaultRates())

	tr.MarkWorker(3, "Validating", true)
	tr.MarkWorker(3, "Waiting (idle)", false)

	snap := tr.Snapshot()
	assert.Len(t, snap.Workers, 1)
	assert.Equal(t, "Waiting (idle)", snap.Workers[3].Activity)
	assert.False(t, snap.Workers[3].Active)
	assert.False(t, snap.Workers[3].LastUpdate.IsZero())
}

func TestTracker_SnapshotIsACopy(t *testing.T) {
	tr := NewTracker(DefaultRates())
	tr.Record(model.OutcomeMaturedTrue, 1, 10, 10)

	snap := tr.Snapshot()
	snap.Session.Outcomes["matured_true"] = 99

	again := tr.Snapshot()
	assert.Equal(t, int64(1), again.Session.Outcomes["matured_true"])
}
