package validator

import (
	"context"
	"strings"
	"unicode/utf16"

	"github.com/forecastlab/verdict-cli/internal/db"
	"github.com/forecastlab/verdict-cli/internal/model"
)

// PostFetcher looks up post text for goal slices that reference a post
// other than the one the prediction was leased with.
type PostFetcher interface {
	GetPostText(ctx context.Context, q db.Querier, postID string) (string, bool, error)
}

// ExtractGoalText produces the prediction text fed to the LLMs.
//
// A pre-computed prediction_context wins outright. Otherwise the goal
// slices are concatenated in order, each cut from its own source post when
// one is named (fetched on demand, cached for the duration of this call)
// and from the leased post otherwise. An empty return means the prediction
// text could not be recovered and the validation is invalid.
func ExtractGoalText(ctx context.Context, q db.Querier, posts PostFetcher, lease *model.LeasedPrediction) (string, error) {
	if pc := lease.Details.PredictionContext; pc != nil && strings.TrimSpace(*pc) != "" {
		return *pc, nil
	}

	var fallback string
	if lease.Post != nil {
		fallback = lease.Post.Text
	}

	cache := map[string]string{}
	if lease.Post != nil {
		cache[lease.Post.ID] = lease.Post.Text
	}

	var b strings.Builder
	for _, slice := range lease.Prediction.GoalSlices {
		text := fallback
		if slice.SourcePostID != nil {
			cached, ok := cache[*slice.SourcePostID]
			if !ok {
				fetched, found, err := posts.GetPostText(ctx, q, *slice.SourcePostID)
				if err != nil {
					return "", err
				}
				if !found {
					fetched = fallback
				}
				cache[*slice.SourcePostID] = fetched
				cached = fetched
			}
			text = cached
		}
		b.WriteString(sliceUTF16(text, slice.Start, slice.End))
	}

	return strings.TrimSpace(b.String()), nil
}

// sliceUTF16 cuts text by UTF-16 code-unit offsets, the indexing unit of
// the upstream parser. Out-of-range bounds clamp rather than error so a
// stale offset degrades to a shorter cut instead of a failed validation.
func sliceUTF16(text string, start, end int) string {
	if text == "" || end <= start {
		return ""
	}

	units := utf16.Encode([]rune(text))
	if start < 0 {
		start = 0
	}
	if end > len(units) {
		end = len(units)
	}
	if start >= len(units) || end <= start {
		return ""
	}
	return string(utf16.Decode(units[start:end]))
}
