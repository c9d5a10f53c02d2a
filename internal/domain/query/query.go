// Package query normalizes free-text search queries into lexical search terms.
package query

import "strings"

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {},
}

// IsStopWord reports whether w (already lower-cased) is dropped from search terms.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

// Terms lower-cases q, splits it on whitespace and drops stop words.
// Order and repeats are preserved.
func Terms(q string) []string {
	fields := strings.Fields(strings.ToLower(q))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if !IsStopWord(f) {
			terms = append(terms, f)
		}
	}
	return terms
}
