package validator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/forecastlab/verdict-cli/internal/model"
	"github.com/forecastlab/verdict-cli/pkg/anthropic"
)

const judgeSystemPrompt = `You judge whether a past prediction came true, based only on the search
results provided. Reply using exactly these tags, each on its own section:

<decision>TRUE, FALSE, or INCONCLUSIVE</decision>
<score>integer 0-10: 10 means the prediction clearly came true, 0 clearly false, 5 unknown</score>
<summary>one or two sentences stating the verdict</summary>
<evidence>the specific facts from the results that support the verdict, citing URLs</evidence>
<reasoning>how the evidence leads to the verdict, noting any gaps</reasoning>
<sufficient>YES if the results settle the question, NO if more searching could help</sufficient>
<next_query>if sufficient is NO, one search query likely to settle it; otherwise leave empty</next_query>`

const judgeMaxTokens = 1500

// Judge evaluates search evidence against a prediction.
type Judge struct {
	chat  anthropic.Client
	model string
}

// NewJudge creates a Judge using the given chat model.
func NewJudge(chat anthropic.Client, model string) *Judge {
	return &Judge{chat: chat, model: model}
}

// JudgeOutput carries the parsed judgment plus token counts.
type JudgeOutput struct {
	Judgment     model.Judgment
	InputTokens  int
	OutputTokens int
}

// Evaluate asks the judge model for a verdict over the given results.
func (j *Judge) Evaluate(ctx context.Context, predictionText string, results []model.SearchResult) (*JudgeOutput, error) {
	resp, err := j.chat.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     j.model,
		MaxTokens: judgeMaxTokens,
		System:    judgeSystemPrompt,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: buildJudgePrompt(predictionText, results),
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "judge: create message")
	}

	return &JudgeOutput{
		Judgment:     ParseJudgment(resp.Content),
		InputTokens:  int(resp.Usage.InputTokens),
		OutputTokens: int(resp.Usage.OutputTokens),
	}, nil
}

func buildJudgePrompt(predictionText string, results []model.SearchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prediction: %s\n\nSearch results:\n", predictionText)
	for i, r := range results {
		fmt.Fprintf(&b, "\n[%d] %s\nURL: %s\n", i+1, r.Title, r.URL)
		if r.PubDate != "" {
			fmt.Fprintf(&b, "Date: %s\n", r.PubDate)
		}
		fmt.Fprintf(&b, "%s\n", r.Excerpt)
	}
	return b.String()
}

var (
	decisionRe   = regexp.MustCompile(`(?s)<decision>\s*(.*?)\s*</decision>`)
	scoreRe      = regexp.MustCompile(`(?s)<score>\s*(\d+)\s*</score>`)
	summaryRe    = regexp.MustCompile(`(?s)<summary>\s*(.*?)\s*</summary>`)
	evidenceRe   = regexp.MustCompile(`(?s)<evidence>\s*(.*?)\s*</evidence>`)
	reasoningRe  = regexp.MustCompile(`(?s)<reasoning>\s*(.*?)\s*</reasoning>`)
	sufficientRe = regexp.MustCompile(`(?s)<sufficient>\s*(.*?)\s*</sufficient>`)
	nextQueryRe  = regexp.MustCompile(`(?s)<next_query>\s*(.*?)\s*</next_query>`)
)

// judgment score bands: scores at or above trueBand mean TRUE, at or below
// falseBand mean FALSE, anything between is INCONCLUSIVE.
const (
	trueBand  = 7
	falseBand = 3
)

// ParseJudgment extracts the tagged fields from a judge reply. A missing or
// unparsable score defaults to 5. When the stated decision disagrees with
// the score band, the score wins: the numeric signal has proven more stable
// than the free-text label.
func ParseJudgment(reply string) model.Judgment {
	jm := model.Judgment{Score: 5}

	if m := scoreRe.FindStringSubmatch(reply); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil && v >= 0 && v <= 10 {
			jm.Score = v
		}
	}
	jm.Summary = firstMatch(summaryRe, reply)
	jm.Evidence = firstMatch(evidenceRe, reply)
	jm.Reasoning = firstMatch(reasoningRe, reply)
	jm.NextQuerySuggestion = firstMatch(nextQueryRe, reply)
	jm.Sufficient = strings.EqualFold(firstMatch(sufficientRe, reply), "YES")

	switch {
	case jm.Score >= trueBand:
		jm.Decision = model.DecisionTrue
	case jm.Score <= falseBand:
		jm.Decision = model.DecisionFalse
	default:
		jm.Decision = model.DecisionInconclusive
	}

	if stated := strings.ToUpper(firstMatch(decisionRe, reply)); stated != "" && stated != string(jm.Decision) {
		zap.L().Debug("judge decision disagrees with score band",
			zap.String("stated", stated),
			zap.Int("score", jm.Score),
			zap.String("resolved", string(jm.Decision)))
	}

	return jm
}

func firstMatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
