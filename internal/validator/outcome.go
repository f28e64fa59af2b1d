package validator

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/forecastlab/verdict-cli/internal/model"
)

// MapOutcome translates a judgment into the persisted outcome. TRUE and
// FALSE split into full and mostly variants by how extreme the score is:
// a TRUE at or above trueCut is matured_true, below it matured_mostly_true,
// and symmetrically for FALSE around falseCut.
func MapOutcome(jm model.Judgment, trueCut, falseCut int) model.Outcome {
	switch jm.Decision {
	case model.DecisionTrue:
		if jm.Score >= trueCut {
			return model.OutcomeMaturedTrue
		}
		return model.OutcomeMaturedMostlyTrue
	case model.DecisionFalse:
		if jm.Score <= falseCut {
			return model.OutcomeMaturedFalse
		}
		return model.OutcomeMaturedMostlyFalse
	default:
		return model.OutcomeMissingContext
	}
}

// BuildProof assembles the human-readable proof text from the judgment.
func BuildProof(jm model.Judgment) string {
	parts := make([]string, 0, 3)
	if jm.Summary != "" {
		parts = append(parts, jm.Summary)
	}
	if jm.Evidence != "" {
		parts = append(parts, jm.Evidence)
	}
	if jm.Reasoning != "" {
		parts = append(parts, fmt.Sprintf("Reasoning: %s", jm.Reasoning))
	}
	return TruncateProof(strings.Join(parts, "\n\n"))
}

// TruncateProof caps proof text at model.MaxProofLen runes, replacing the
// tail with "..." when cut. Idempotent: an already-truncated proof passes
// through unchanged.
func TruncateProof(proof string) string {
	r := []rune(proof)
	if len(r) <= model.MaxProofLen {
		return proof
	}
	return string(r[:model.MaxProofLen-3]) + "..."
}

// maxSources bounds how many source links are persisted per result.
const maxSources = 2

// PickSources selects the sources stored alongside the outcome: the first
// well-formed URLs among the results the judge saw, at most maxSources.
// Inconclusive verdicts get none since no evidence settled the question.
func PickSources(jm model.Judgment, results []model.SearchResult) []model.Source {
	if jm.Decision == model.DecisionInconclusive {
		return nil
	}

	sources := make([]model.Source, 0, maxSources)
	for _, r := range results {
		if !wellFormedURL(r.URL) {
			continue
		}
		sources = append(sources, model.Source{
			URL:     r.URL,
			Title:   r.Title,
			Excerpt: r.Excerpt,
			PubDate: r.PubDate,
		})
		if len(sources) == maxSources {
			break
		}
	}
	return sources
}

func wellFormedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
