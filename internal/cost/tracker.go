// Package cost tracks validation throughput, token usage, and derived USD
// spend. One Tracker exists per process; workers update it after their
// lease transaction commits, and the status endpoint pulls snapshots.
package cost

import (
	"sync"
	"time"

	"github.com/forecastlab/verdict-cli/internal/model"
)

// Rates holds the pricing used to derive USD cost from usage counters.
type Rates struct {
	// SearchPlanMonthly / SearchQueriesPerPlan gives the effective price
	// of one search API call on the current plan.
	SearchPlanMonthly    float64
	SearchQueriesPerPlan float64
	LLMInputPerMTok      float64
	LLMOutputPerMTok     float64
}

// DefaultRates returns the current plan pricing.
func DefaultRates() Rates {
	return Rates{
		SearchPlanMonthly:    100,
		SearchQueriesPerPlan: 35000,
		LLMInputPerMTok:      0.30,
		LLMOutputPerMTok:     2.50,
	}
}

// counterSet accumulates usage for one accounting window.
type counterSet struct {
	validated    int64
	searchCalls  int64
	inputTokens  int64
	outputTokens int64
	outcomes     map[model.Outcome]int64
	startedAt    time.Time
}

func newCounterSet(startedAt time.Time) counterSet {
	return counterSet{
		outcomes:  make(map[model.Outcome]int64),
		startedAt: startedAt,
	}
}

func (c *counterSet) record(outcome model.Outcome, searchCalls, inTokens, outTokens int) {
	c.validated++
	c.searchCalls += int64(searchCalls)
	c.inputTokens += int64(inTokens)
	c.outputTokens += int64(outTokens)
	c.outcomes[outcome]++
}

// WorkerStatus reports what a single worker is doing right now.
type WorkerStatus struct {
	Activity   string    `json:"activity"`
	Active     bool      `json:"active"`
	LastUpdate time.Time `json:"last_update"`
}

// Tracker is the process-wide cost and telemetry accumulator. Session
// counters cover the current process lifetime; historical counters are
// reloaded from the cost log at start and grow alongside.
type Tracker struct {
	mu         sync.Mutex
	rates      Rates
	session    counterSet
	historical counterSet
	workers    map[int]WorkerStatus
}

// NewTracker creates a Tracker with empty counters.
func NewTracker(rates Rates) *Tracker {
	now := time.Now().UTC()
	return &Tracker{
		rates:      rates,
		session:    newCounterSet(now),
		historical: newCounterSet(now),
		workers:    make(map[int]WorkerStatus),
	}
}

// Record accounts one committed validation in both counter sets.
func (t *Tracker) Record(outcome model.Outcome, searchCalls, inTokens, outTokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session.record(outcome, searchCalls, inTokens, outTokens)
	t.historical.record(outcome, searchCalls, inTokens, outTokens)
}

// LoadHistorical seeds the historical counters from persisted log entries.
func (t *Tracker) LoadHistorical(entries []LogEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.historical.record(model.Outcome(e.Outcome), e.SearchAPICalls,
			e.TotalInputTokens, e.TotalOutputTokens)
		if !e.Timestamp.IsZero() && e.Timestamp.Before(t.historical.startedAt) {
			t.historical.startedAt = e.Timestamp
		}
	}
}

// MarkWorker records a worker's current activity.
func (t *Tracker) MarkWorker(id int, activity string, active bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workers[id] = WorkerStatus{
		Activity:   activity,
		Active:     active,
		LastUpdate: time.Now().UTC(),
	}
}

// CounterSnapshot is an immutable view of one counter set with derived cost.
type CounterSnapshot struct {
	Validated     int64            `json:"validated"`
	SearchCalls   int64            `json:"search_api_calls"`
	InputTokens   int64            `json:"input_tokens"`
	OutputTokens  int64            `json:"output_tokens"`
	Outcomes      map[string]int64 `json:"outcomes"`
	StartedAt     time.Time        `json:"started_at"`
	SearchCostUSD float64          `json:"search_cost_usd"`
	LLMCostUSD    float64          `json:"llm_cost_usd"`
	TotalCostUSD  float64          `json:"total_cost_usd"`
}

// Snapshot is what the dashboard pulls.
type Snapshot struct {
	Session    CounterSnapshot      `json:"session"`
	Historical CounterSnapshot      `json:"historical"`
	Workers    map[int]WorkerStatus `json:"workers"`
}

// Snapshot returns a copy of all counters with derived USD cost.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	workers := make(map[int]WorkerStatus, len(t.workers))
	for id, w := range t.workers {
		workers[id] = w
	}

	return Snapshot{
		Session:    t.snapshotCounters(&t.session),
		Historical: t.snapshotCounters(&t.historical),
		Workers:    workers,
	}
}

func (t *Tracker) snapshotCounters(c *counterSet) CounterSnapshot {
	outcomes := make(map[string]int64, len(c.outcomes))
	for o, n := range c.outcomes {
		outcomes[string(o)] = n
	}

	searchCost := float64(c.searchCalls) * (t.rates.SearchPlanMonthly / t.rates.SearchQueriesPerPlan)
	llmCost := (float64(c.inputTokens)/1e6)*t.rates.LLMInputPerMTok +
		(float64(c.outputTokens)/1e6)*t.rates.LLMOutputPerMTok

	return CounterSnapshot{
		Validated:     c.validated,
		SearchCalls:   c.searchCalls,
		InputTokens:   c.inputTokens,
		OutputTokens:  c.outputTokens,
		Outcomes:      outcomes,
		StartedAt:     c.startedAt,
		SearchCostUSD: searchCost,
		LLMCostUSD:    llmCost,
		TotalCostUSD:  searchCost + llmCost,
	}
}
