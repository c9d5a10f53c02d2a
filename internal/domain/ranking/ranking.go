// Package ranking blends semantic similarity with a lexical boost and orders results.
package ranking

import (
	"sort"
	"strings"

	"github.com/kailas-cloud/newsdex/internal/domain"
)

const (
	// BoostPerMatch is added for every search term found in the candidate text.
	BoostPerMatch = 0.15
	// MaxBoost caps the lexical boost.
	MaxBoost = 0.45
)

// Matches counts the terms that occur as substrings of text.
// A term listed twice counts twice.
func Matches(terms []string, text string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

// Boost returns min(matches*BoostPerMatch, MaxBoost) for the candidate's heading and preview.
func Boost(terms []string, heading, preview string) float64 {
	if len(terms) == 0 {
		return 0
	}
	text := strings.ToLower(heading + " " + preview)
	return min(float64(Matches(terms, text))*BoostPerMatch, MaxBoost)
}

// Score is the combined relevance: semantic similarity plus lexical boost.
// It is a heuristic blend and may exceed 1.
func Score(semantic float64, terms []string, heading, preview string) float64 {
	return semantic + Boost(terms, heading, preview)
}

// Sort orders results by score descending, then URL ascending.
func Sort(results []domain.QueryResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].URL < results[j].URL
	})
}

// Unique drops later results whose URL was already seen, preserving order.
func Unique(results []domain.QueryResult) []domain.QueryResult {
	seen := make(map[string]struct{}, len(results))
	out := make([]domain.QueryResult, 0, len(results))
	for _, r := range results {
		if _, dup := seen[r.URL]; dup {
			continue
		}
		seen[r.URL] = struct{}{}
		out = append(out, r)
	}
	return out
}
