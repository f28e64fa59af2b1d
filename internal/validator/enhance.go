package validator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/forecastlab/verdict-cli/pkg/anthropic"
)

const enhancerSystemPrompt = `You turn a prediction statement into a single effective web search query.
The prediction was made in the past; its deadline has now passed, and the query
must surface evidence of what actually happened. Reply with the query text only:
no quotes, no explanation, one line.`

// queryAngles are the fixed directives that diversify the parallel
// enhancement calls. Order matters: the first n angles are used.
var queryAngles = [3]string{
	"Write a direct factual search query about the main claim of the prediction.",
	"Write a search query that would find news articles or reports about the predicted event.",
	"Write a search query using synonyms or alternative keywords for the key terms of the prediction.",
}

const (
	enhancerMaxTokens = 200
	baseTemperature   = 0.7
	temperatureStep   = 0.1
)

// Enhancer generates search queries from prediction text.
type Enhancer struct {
	chat  anthropic.Client
	model string
}

// NewEnhancer creates an Enhancer using the given chat model.
func NewEnhancer(chat anthropic.Client, model string) *Enhancer {
	return &Enhancer{chat: chat, model: model}
}

// EnhanceResult carries generated queries and aggregated token counts.
type EnhanceResult struct {
	Queries      []string
	InputTokens  int
	OutputTokens int
}

// EnhanceMultiple issues n chat calls in parallel, one per angle, each at a
// slightly different temperature to diversify output. n is capped at the
// number of angles.
func (e *Enhancer) EnhanceMultiple(ctx context.Context, text string, n int) (*EnhanceResult, error) {
	if n <= 0 {
		return nil, eris.New("enhancer: query count must be positive")
	}
	if n > len(queryAngles) {
		n = len(queryAngles)
	}

	queries := make([]string, n)
	inTokens := make([]int, n)
	outTokens := make([]int, n)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			temp := baseTemperature + temperatureStep*float64(i)
			resp, err := e.chat.CreateMessage(gctx, anthropic.MessageRequest{
				Model:       e.model,
				MaxTokens:   enhancerMaxTokens,
				System:      enhancerSystemPrompt,
				Temperature: &temp,
				Messages: []anthropic.Message{{
					Role:    "user",
					Content: fmt.Sprintf("%s\n\nPrediction: %s", queryAngles[i], text),
				}},
			})
			if err != nil {
				return eris.Wrapf(err, "enhancer: angle %d", i)
			}
			queries[i] = normalizeQuery(resp.Content)
			inTokens[i] = int(resp.Usage.InputTokens)
			outTokens[i] = int(resp.Usage.OutputTokens)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &EnhanceResult{Queries: queries}
	for i := 0; i < n; i++ {
		result.InputTokens += inTokens[i]
		result.OutputTokens += outTokens[i]
	}
	return result, nil
}

// PastAttempt describes a query that failed to produce sufficient evidence.
type PastAttempt struct {
	Query      string
	Successful bool
	Reasoning  string
}

// RefineResult carries the single refined query plus token counts.
type RefineResult struct {
	Query        string
	InputTokens  int
	OutputTokens int
}

// Refine asks for one new query given the failed attempts so far. The
// temperature rises with the number of attempts to push the model away
// from repeating them.
func (e *Enhancer) Refine(ctx context.Context, text string, past []PastAttempt) (*RefineResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Prediction: %s\n\nThese search queries did not find sufficient evidence:\n", text)
	for _, a := range past {
		fmt.Fprintf(&b, "- %q", a.Query)
		if a.Successful {
			b.WriteString(" (found results, but not conclusive)")
		}
		if a.Reasoning != "" {
			fmt.Fprintf(&b, " (hint: %s)", a.Reasoning)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nWrite one different search query that is more likely to find evidence of the outcome.")

	temp := baseTemperature + temperatureStep*float64(len(past))
	resp, err := e.chat.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       e.model,
		MaxTokens:   enhancerMaxTokens,
		System:      enhancerSystemPrompt,
		Temperature: &temp,
		Messages:    []anthropic.Message{{Role: "user", Content: b.String()}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "enhancer: refine")
	}

	return &RefineResult{
		Query:        normalizeQuery(resp.Content),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

// quotePairs are the wrapping quote characters stripped from model output.
var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"}, // curly double
	{"‘", "’"}, // curly single
}

// normalizeQuery trims the model reply down to a usable query string:
// whitespace trimmed, first non-blank line only, one wrapping quote pair
// removed.
func normalizeQuery(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}
	for _, pair := range quotePairs {
		if strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) && len(s) > len(pair[0])+len(pair[1]) {
			s = strings.TrimPrefix(s, pair[0])
			s = strings.TrimSuffix(s, pair[1])
			s = strings.TrimSpace(s)
			break
		}
	}
	return s
}
