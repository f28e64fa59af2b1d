package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastlab/verdict-cli/internal/model"
)

func TestExtractGoalText_PrefersPredictionContext(t *testing.T) {
	lease := &model.LeasedPrediction{
		Prediction: model.Prediction{
			GoalSlices: []model.GoalSlice{{Start: 0, End: 5}},
		},
		Details: model.PredictionDetails{PredictionContext: strp("BTC closes above 100k by March")},
		Post:    &model.Post{ID: "post-1", Text: "ignored post text"},
	}

	text, err := ExtractGoalText(context.Background(), nil, &mockResultStore{}, lease)
	require.NoError(t, err)
	assert.Equal(t, "BTC closes above 100k by March", text)
}

func TestExtractGoalText_BlankContextFallsThrough(t *testing.T) {
	lease := &model.LeasedPrediction{
		Prediction: model.Prediction{
			GoalSlices: []model.GoalSlice{{Start: 0, End: 3}},
		},
		Details: model.PredictionDetails{PredictionContext: strp("   ")},
		Post:    &model.Post{ID: "post-1", Text: "gold will rally"},
	}

	text, err := ExtractGoalText(context.Background(), nil, &mockResultStore{}, lease)
	require.NoError(t, err)
	assert.Equal(t, "gol", text)
}

func TestExtractGoalText_ConcatenatesSlicesInOrder(t *testing.T) {
	lease := &model.LeasedPrediction{
		Prediction: model.Prediction{
			GoalSlices: []model.GoalSlice{
				{Start: 0, End: 9},
				{Start: 17, End: 28},
			},
		},
		Post: &model.Post{ID: "post-1", Text: "oil hits padding $90 by June"},
	}

	text, err := ExtractGoalText(context.Background(), nil, &mockResultStore{}, lease)
	require.NoError(t, err)
	assert.Equal(t, "oil hits $90 by June", text)
}

func TestExtractGoalText_FetchesAndCachesSourcePosts(t *testing.T) {
	other := "other-post"
	store := &mockResultStore{posts: map[string]string{
		"other-post": "rates drop in Q3",
	}}
	lease := &model.LeasedPrediction{
		Prediction: model.Prediction{
			GoalSlices: []model.GoalSlice{
				{Start: 0, End: 10, SourcePostID: &other},
				{Start: 10, End: 16, SourcePostID: &other},
			},
		},
		Post: &model.Post{ID: "post-1", Text: "unrelated"},
	}

	text, err := ExtractGoalText(context.Background(), nil, store, lease)
	require.NoError(t, err)
	assert.Equal(t, "rates drop in Q3", text)
}

func TestExtractGoalText_MissingSourcePostFallsBack(t *testing.T) {
	gone := "deleted-post"
	lease := &model.LeasedPrediction{
		Prediction: model.Prediction{
			GoalSlices: []model.GoalSlice{{Start: 0, End: 4, SourcePostID: &gone}},
		},
		Post: &model.Post{ID: "post-1", Text: "fallback text"},
	}

	text, err := ExtractGoalText(context.Background(), nil, &mockResultStore{}, lease)
	require.NoError(t, err)
	assert.Equal(t, "fall", text)
}

func TestExtractGoalText_NoPostNoContextIsEmpty(t *testing.T) {
	lease := &model.LeasedPrediction{
		Prediction: model.Prediction{
			GoalSlices: []model.GoalSlice{{Start: 0, End: 10}},
		},
	}

	text, err := ExtractGoalText(context.Background(), nil, &mockResultStore{}, lease)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestSliceUTF16(t *testing.T) {
	// "€" is one UTF-16 code unit; "𝄞" (U+1D11E) is a surrogate pair.
	text := "a€b𝄞c"

	assert.Equal(t, "a€b", sliceUTF16(text, 0, 3))
	assert.Equal(t, "𝄞", sliceUTF16(text, 3, 5))
	assert.Equal(t, "c", sliceUTF16(text, 5, 6))

	// clamping
	assert.Equal(t, "a€b𝄞c", sliceUTF16(text, 0, 100))
	assert.Equal(t, "", sliceUTF16(text, 50, 60))
	assert.Equal(t, "a", sliceUTF16(text, -5, 1))

	// degenerate ranges
	assert.Equal(t, "", sliceUTF16(text, 3, 3))
	assert.Equal(t, "", sliceUTF16(text, 4, 2))
	assert.Equal(t, "", sliceUTF16("", 0, 5))
}
