package worker

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/forecastlab/verdict-cli/internal/db"
	"github.com/forecastlab/verdict-cli/internal/model"
	"github.com/forecastlab/verdict-cli/internal/store"
	"github.com/forecastlab/verdict-cli/internal/validator"
)

// mockStore implements store.Store for testing.
type mockStore struct {
	mu        sync.Mutex
	leases    []*model.LeasedPrediction
	leaseErr  error
	leaseIdx  int
	lastNow   time.Time
	lastFilts store.LeaseFilters
}

func (m *mockStore) LeaseNext(_ context.Context, _ pgx.Tx, now time.Time, f store.LeaseFilters) (*model.LeasedPrediction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastNow = now
	m.lastFilts = f
	if m.leaseErr != nil {
		return nil, m.leaseErr
	}
	if m.leaseIdx >= len(m.leases) {
		return nil, nil
	}
	lease := m.leases[m.leaseIdx]
	m.leaseIdx++
	return lease, nil
}

func (m *mockStore) InsertResult(_ context.Context, _ db.Querier, _ *model.ValidationResult) (bool, error) {
	return true, nil
}

func (m *mockStore) GetPostText(_ context.Context, _ db.Querier, _ string) (string, bool, error) {
	return "", false, nil
}

func (m *mockStore) Ping(_ context.Context) error    { return nil }
func (m *mockStore) Migrate(_ context.Context) error { return nil }
func (m *mockStore) Close() error                    { return nil }

// mockPipeline implements Validator for testing. The optional run hook is
// invoked with the pipeline's context before the canned result is returned.
type mockPipeline struct {
	mu     sync.Mutex
	result *model.ValidationResult
	stats  *validator.RunStats
	err    error
	calls  int
	run    func(ctx context.Context)
}

func (m *mockPipeline) Run(ctx context.Context, _ db.Querier, _ *model.LeasedPrediction) (*model.ValidationResult, *validator.RunStats, error) {
	m.mu.Lock()
	m.calls++
	run := m.run
	m.mu.Unlock()

	if run != nil {
		run(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, &validator.RunStats{}, m.err
	}
	return m.result, m.stats, nil
}
