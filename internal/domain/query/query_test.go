package query

import (
	"reflect"
	"testing"
)

func TestTerms(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "election results", []string{"election", "results"}},
		{"stop words dropped", "The state of the economy", []string{"state", "economy"}},
		{"case folded", "UK Election", []string{"uk", "election"}},
		{"extra whitespace", "  climate \t  change\n", []string{"climate", "change"}},
		{"repeats kept", "vote vote count", []string{"vote", "vote", "count"}},
		{"only stop words", "the and of", []string{}},
		{"empty", "", []string{}},
		{"punctuation stays attached", "election, results", []string{"election,", "results"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Terms(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Terms(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestIsStopWord(t *testing.T) {
	for _, w := range []string{"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with"} {
		if !IsStopWord(w) {
			t.Errorf("%q should be a stop word", w)
		}
	}
	if IsStopWord("election") {
		t.Error("election is not a stop word")
	}
}
