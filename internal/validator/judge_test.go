package validator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forecastlab/verdict-cli/internal/model"
	"github.com/forecastlab/verdict-cli/pkg/anthropic"
)

const sampleJudgeReply = `<decision>TRUE</decision>
<score>9</score>
<summary>Bitcoin closed above 100k in December 2025.</summary>
<evidence>CoinDesk reported a close of 104,250 on Dec 5 (https://coindesk.com/a).</evidence>
<reasoning>Multiple outlets confirm the threshold was crossed before the deadline.</reasoning>
<sufficient>YES</sufficient>
<next_query></next_query>`

func TestParseJudgment_FullReply(t *testing.T) {
	jm := ParseJudgment(sampleJudgeReply)

	assert.Equal(t, model.DecisionTrue, jm.Decision)
	assert.Equal(t, 9, jm.Score)
	assert.Equal(t, "Bitcoin closed above 100k in December 2025.", jm.Summary)
	assert.Contains(t, jm.Evidence, "CoinDesk")
	assert.Contains(t, jm.Reasoning, "Multiple outlets")
	assert.True(t, jm.Sufficient)
	assert.Empty(t, jm.NextQuerySuggestion)
}

func TestParseJudgment_ScoreDefaultsToFive(t *testing.T) {
	jm := ParseJudgment("<decision>TRUE</decision><summary>no score tag</summary>")
	assert.Equal(t, 5, jm.Score)
	assert.Equal(t, model.DecisionInconclusive, jm.Decision)

	jm = ParseJudgment("<score>eleven</score>")
	assert.Equal(t, 5, jm.Score)

	jm = ParseJudgment("<score>42</score>")
	assert.Equal(t, 5, jm.Score)
}

func TestParseJudgment_ScoreOverridesStatedDecision(t *testing.T) {
	jm := ParseJudgment("<decision>FALSE</decision><score>8</score>")
	assert.Equal(t, model.DecisionTrue, jm.Decision)

	jm = ParseJudgment("<decision>TRUE</decision><score>2</score>")
	assert.Equal(t, model.DecisionFalse, jm.Decision)

	jm = ParseJudgment("<decision>TRUE</decision><score>5</score>")
	assert.Equal(t, model.DecisionInconclusive, jm.Decision)
}

func TestParseJudgment_ScoreBands(t *testing.T) {
	cases := []struct {
		score int
		want  model.Decision
	}{
		{0, model.DecisionFalse},
		{3, model.DecisionFalse},
		{4, model.DecisionInconclusive},
		{6, model.DecisionInconclusive},
		{7, model.DecisionTrue},
		{10, model.DecisionTrue},
	}
	for _, tc := range cases {
		jm := ParseJudgment(fmt.Sprintf("<score>%d</score>", tc.score))
		assert.Equal(t, tc.want, jm.Decision, "score %d", tc.score)
	}
}

func TestParseJudgment_SufficientNoAndNextQuery(t *testing.T) {
	jm := ParseJudgment(`<score>5</score>
<sufficient>no</sufficient>
<next_query>bitcoin december 2025 closing price coinbase</next_query>`)

	assert.False(t, jm.Sufficient)
	assert.Equal(t, "bitcoin december 2025 closing price coinbase", jm.NextQuerySuggestion)
}

func TestJudge_Evaluate(t *testing.T) {
	chat := &mockChatClient{
		respond: func(req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
			return &anthropic.MessageResponse{
				Content: sampleJudgeReply,
				Usage:   anthropic.TokenUsage{InputTokens: 800, OutputTokens: 120},
			}, nil
		},
	}
	j := NewJudge(chat, "sonnet")

	out, err := j.Evaluate(context.Background(), "BTC above 100k by Dec 2025", []model.SearchResult{
		{URL: "https://coindesk.com/a", Title: "BTC tops 104k", Excerpt: "Bitcoin crossed...", PubDate: "Dec 5, 2025"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionTrue, out.Judgment.Decision)
	assert.Equal(t, 800, out.InputTokens)
	assert.Equal(t, 120, out.OutputTokens)

	require.Len(t, chat.requests, 1)
	prompt := chat.requests[0].Messages[0].Content
	assert.Contains(t, prompt, "BTC above 100k by Dec 2025")
	assert.Contains(t, prompt, "https://coindesk.com/a")
	assert.Contains(t, prompt, "Dec 5, 2025")
	assert.Equal(t, "sonnet", chat.requests[0].Model)
}
