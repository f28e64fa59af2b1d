package validator

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/forecastlab/verdict-cli/internal/model"
	"github.com/forecastlab/verdict-cli/pkg/serper"
)

// searchConcurrency bounds the parallel search calls per fan-out.
const searchConcurrency = 4

// Searcher runs enhanced queries against the search API.
type Searcher struct {
	client     serper.Client
	resultsPer int
	maxTotal   int
}

// NewSearcher creates a Searcher. resultsPer is the result count requested
// per query; maxTotal caps the combined result set across all queries.
func NewSearcher(client serper.Client, resultsPer, maxTotal int) *Searcher {
	return &Searcher{client: client, resultsPer: resultsPer, maxTotal: maxTotal}
}

// FanOut runs all queries in parallel and concatenates the results in query
// order, capped at maxTotal. The returned call count is the number of API
// requests actually issued, which the caller charges against the search
// budget whether or not the results end up used.
func (s *Searcher) FanOut(ctx context.Context, queries []string) ([]model.SearchResult, int, error) {
	perQuery := make([][]model.SearchResult, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)
	for i, query := range queries {
		g.Go(func() error {
			resp, err := s.client.Search(gctx, serper.SearchRequest{Query: query, Num: s.resultsPer})
			if err != nil {
				return eris.Wrapf(err, "search: query %q", query)
			}
			results := make([]model.SearchResult, 0, len(resp.Organic))
			for _, o := range resp.Organic {
				results = append(results, model.SearchResult{
					URL:     o.Link,
					Title:   o.Title,
					Excerpt: o.Snippet,
					PubDate: o.Date,
				})
			}
			perQuery[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, len(queries), err
	}

	var combined []model.SearchResult
	for _, results := range perQuery {
		combined = append(combined, results...)
	}
	if len(combined) > s.maxTotal {
		combined = combined[:s.maxTotal]
	}
	return combined, len(queries), nil
}
