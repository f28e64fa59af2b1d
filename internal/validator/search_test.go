package validator

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastlab/verdict-cli/pkg/serper"
)

func organic(n int, prefix string) []serper.OrganicResult {
	out := make([]serper.OrganicResult, n)
	for i := range out {
		out[i] = serper.OrganicResult{
			Link:    fmt.Sprintf("https://example.com/%s/%d", prefix, i),
			Title:   fmt.Sprintf("%s result %d", prefix, i),
			Snippet: "snippet",
			Date:    "Jan 1, 2026",
		}
	}
	return out
}

func TestFanOut_PreservesQueryOrder(t *testing.T) {
	client := &mockSearchClient{
		respond: func(req serper.SearchRequest) (*serper.SearchResponse, error) {
			return &serper.SearchResponse{Organic: organic(2, req.Query)}, nil
		},
	}
	s := NewSearcher(client, 10, 30)

	results, calls, err := s.FanOut(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, results, 4)
	assert.Equal(t, "https://example.com/alpha/0", results[0].URL)
	assert.Equal(t, "https://example.com/alpha/1", results[1].URL)
	assert.Equal(t, "https://example.com/beta/0", results[2].URL)
	assert.Equal(t, "https://example.com/beta/1", results[3].URL)
	assert.Equal(t, "snippet", results[0].Excerpt)
	assert.Equal(t, "Jan 1, 2026", results[0].PubDate)
}

func TestFanOut_CapsCombinedResults(t *testing.T) {
	client := &mockSearchClient{
		respond: func(req serper.SearchRequest) (*serper.SearchResponse, error) {
			return &serper.SearchResponse{Organic: organic(10, req.Query)}, nil
		},
	}
	s := NewSearcher(client, 10, 15)

	results, calls, err := s.FanOut(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, results, 15)
}

func TestFanOut_ErrorStillReportsCalls(t *testing.T) {
	client := &mockSearchClient{
		respond: func(req serper.SearchRequest) (*serper.SearchResponse, error) {
			if req.Query == "bad" {
				return nil, errors.New("quota exceeded")
			}
			return &serper.SearchResponse{}, nil
		},
	}
	s := NewSearcher(client, 10, 30)

	_, calls, err := s.FanOut(context.Background(), []string{"ok", "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 2, calls)
}

func TestFanOut_EmptyQueriesIsEmpty(t *testing.T) {
	client := &mockSearchClient{
		respond: func(serper.SearchRequest) (*serper.SearchResponse, error) {
			t.Fatal("no search call expected")
			return nil, nil
		},
	}
	s := NewSearcher(client, 10, 30)

	results, calls, err := s.FanOut(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Empty(t, results)
}
