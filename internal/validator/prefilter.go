// Package validator implements the validation pipeline: pre-filter, goal
// extraction, query enhancement, search fan-out, judgment, outcome mapping,
// and result persistence.
package validator

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"

	"github.com/forecastlab/verdict-cli/internal/config"
	"github.com/forecastlab/verdict-cli/internal/model"
)

// defaultRejectKeywords flags filter reasoning that signals the row is not
// actually a prediction (hedging, quoting, announcements). The list is
// data: deployments can replace it via prefilter.keywords_file.
var defaultRejectKeywords = []string{
	"not a prediction",
	"not a valid prediction",
	"no prediction",
	"invalid prediction",
	"not making a prediction",
	"does not contain a prediction",
	"doesn't contain a prediction",
	"no clear prediction",
	"lacks a prediction",
	"missing prediction",
	"not predictive",
	"too vague",
	"overly vague",
	"impossible to validate",
	"cannot be validated",
	"not verifiable",
	"unverifiable",
	"heavy hedging",
	"quoting someone else",
	"is an announcement",
	"factual announcement",
}

// DefaultRejectKeywords returns a copy of the built-in keyword list.
func DefaultRejectKeywords() []string {
	out := make([]string, len(defaultRejectKeywords))
	copy(out, defaultRejectKeywords)
	return out
}

// LoadRejectKeywords reads a keyword list from a YAML file: either a bare
// sequence of strings or a mapping with a "keywords" key.
func LoadRejectKeywords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prefilter: read keywords file %s", path)
	}

	var plain []string
	if err := yaml.Unmarshal(data, &plain); err == nil && len(plain) > 0 {
		return plain, nil
	}

	var wrapped struct {
		Keywords []string `yaml:"keywords"`
	}
	if err := yaml.Unmarshal(data, &wrapped); err != nil {
		return nil, eris.Wrapf(err, "prefilter: parse keywords file %s", path)
	}
	if len(wrapped.Keywords) == 0 {
		return nil, eris.Errorf("prefilter: keywords file %s is empty", path)
	}
	return wrapped.Keywords, nil
}

// reasoningQuoteLen bounds how much filter reasoning is quoted in a
// rejection proof.
const reasoningQuoteLen = 200

// PreFilter re-applies every quality gate on a leased tuple. The lease SQL
// already enforces the numeric thresholds; re-checking here catches drift
// between the SQL predicate and application policy, and adds the keyword
// scan that SQL cannot express.
type PreFilter struct {
	thresholds config.ThresholdConfig
	keywords   []string
	fold       cases.Caser
}

// NewPreFilter creates a PreFilter. An empty keyword slice means the
// built-in default list.
func NewPreFilter(thresholds config.ThresholdConfig, keywords []string) *PreFilter {
	if len(keywords) == 0 {
		keywords = DefaultRejectKeywords()
	}
	fold := cases.Fold()
	folded := make([]string, len(keywords))
	for i, k := range keywords {
		folded[i] = fold.String(k)
	}
	return &PreFilter{
		thresholds: thresholds,
		keywords:   folded,
		fold:       fold,
	}
}

// Result reports whether a leased prediction passed the pre-filter.
type Result struct {
	Accepted bool
	Reason   string
}

func reject(format string, args ...any) Result {
	return Result{Accepted: false, Reason: fmt.Sprintf(format, args...)}
}

// Check evaluates all gates. It never performs I/O.
func (p *PreFilter) Check(lease *model.LeasedPrediction, now time.Time) Result {
	d := &lease.Details

	if d.TimeframeEnd == nil {
		return reject("Prediction has no timeframe end")
	}
	if d.TimeframeEnd.After(now) {
		return reject("Prediction not yet matured: ends %s", d.TimeframeEnd.UTC().Format(time.RFC3339))
	}
	if d.TimeframeStatus == model.TimeframeStatusMissing {
		return reject("Prediction timeframe status is missing")
	}
	if d.TimeframeStart != nil && d.TimeframeStart.After(*d.TimeframeEnd) {
		return reject("Prediction timeframe is inverted: start %s after end %s",
			d.TimeframeStart.UTC().Format(time.RFC3339), d.TimeframeEnd.UTC().Format(time.RFC3339))
	}

	pr := &lease.Prediction
	if pr.Vagueness != nil && *pr.Vagueness > p.thresholds.MaxVagueness {
		return reject("Prediction too vague: %.2f (threshold: %.2f)", *pr.Vagueness, p.thresholds.MaxVagueness)
	}
	if pr.PredictionQuality != nil && *pr.PredictionQuality < p.thresholds.MinQuality {
		return reject("Prediction quality too low: %.0f (threshold: %.0f)", *pr.PredictionQuality, p.thresholds.MinQuality)
	}
	if pr.LLMConfidence != nil && *pr.LLMConfidence < p.thresholds.MinLLMConfidence {
		return reject("LLM confidence too low: %.2f (threshold: %.2f)", *pr.LLMConfidence, p.thresholds.MinLLMConfidence)
	}
	if d.FilterValidationConfidence != nil && *d.FilterValidationConfidence < p.thresholds.MinFilterConfidence {
		return reject("Filter validation confidence too low: %.2f (threshold: %.2f)",
			*d.FilterValidationConfidence, p.thresholds.MinFilterConfidence)
	}

	if d.FilterValidationReasoning != nil {
		if kw := p.matchKeyword(*d.FilterValidationReasoning); kw != "" {
			return reject("Filter validation flagged non-prediction (%q): %s",
				kw, truncate(*d.FilterValidationReasoning, reasoningQuoteLen))
		}
	}

	return Result{Accepted: true}
}

// matchKeyword returns the first reject keyword found in reasoning, or ""
// when none match. Matching is case-folded substring search.
func (p *PreFilter) matchKeyword(reasoning string) string {
	folded := p.fold.String(reasoning)
	for _, kw := range p.keywords {
		if strings.Contains(folded, kw) {
			return kw
		}
	}
	return ""
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
