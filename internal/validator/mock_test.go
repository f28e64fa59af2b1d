package validator

import (
	"context"
	"sync"

	"github.com/forecastlab/verdict-cli/internal/db"
	"github.com/forecastlab/verdict-cli/internal/model"
	"github.com/forecastlab/verdict-cli/pkg/anthropic"
	"github.com/forecastlab/verdict-cli/pkg/serper"
)

// mockChatClient implements anthropic.Client for testing.
type mockChatClient struct {
	mu       sync.Mutex
	respond  func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error)
	requests []anthropic.MessageRequest
}

func (m *mockChatClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.respond(req)
}

// mockSearchClient implements serper.Client for testing.
type mockSearchClient struct {
	mu      sync.Mutex
	respond func(req serper.SearchRequest) (*serper.SearchResponse, error)
	queries []string
}

func (m *mockSearchClient) Search(_ context.Context, req serper.SearchRequest) (*serper.SearchResponse, error) {
	m.mu.Lock()
	m.queries = append(m.queries, req.Query)
	m.mu.Unlock()
	return m.respond(req)
}

// mockResultStore implements ResultStore for testing.
type mockResultStore struct {
	posts     map[string]string
	postErr   error
	inserted  []*model.ValidationResult
	conflict  bool
	insertErr error
}

func (m *mockResultStore) GetPostText(_ context.Context, _ db.Querier, postID string) (string, bool, error) {
	if m.postErr != nil {
		return "", false, m.postErr
	}
	text, ok := m.posts[postID]
	return text, ok, nil
}

func (m *mockResultStore) InsertResult(_ context.Context, _ db.Querier, r *model.ValidationResult) (bool, error) {
	if m.insertErr != nil {
		return false, m.insertErr
	}
	if m.conflict {
		return false, nil
	}
	m.inserted = append(m.inserted, r)
	return true, nil
}
