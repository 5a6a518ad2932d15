package tokenizer

import (
	"reflect"
	"strings"
	"testing"
)

func TestCountTokens(t *testing.T) {
	est := NewHeuristicEstimator()

	tests := []struct {
		name string
		text string
		want int
	}{
		{"empty", "", 0},
		{"single short word", "hi", 2},
		{"char bound", "abcdefghijklmnop", 4},
		{"word bound", "a b c d e f", 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := est.CountTokens(tt.text); got != tt.want {
				t.Errorf("CountTokens(%q) = %d, want %d", tt.text, got, tt.want)
			}
		})
	}
}

func TestCountTokensNeverBelowWords(t *testing.T) {
	est := NewHeuristicEstimator()
	text := strings.Repeat("I a ", 200)
	if tokens, words := est.CountTokens(text), CountWords(text); tokens < words {
		t.Errorf("tokens %d < words %d", tokens, words)
	}
}

func TestEstimateOutputTokens(t *testing.T) {
	if got := EstimateOutputTokens(3); got != MinOutputTokens {
		t.Errorf("EstimateOutputTokens(3) = %d, want floor %d", got, MinOutputTokens)
	}
	if got := EstimateOutputTokens(60); got != 80 {
		t.Errorf("EstimateOutputTokens(60) = %d, want 80", got)
	}
}

func TestSentences(t *testing.T) {
	got := Sentences("Team met. Sarah does frontend by March 15!  Budget is $15,000?  ")
	want := []string{"Team met", "Sarah does frontend by March 15", "Budget is $15,000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sentences() = %#v, want %#v", got, want)
	}

	if got := Sentences("..."); len(got) != 0 {
		t.Errorf("Sentences of punctuation only = %#v, want empty", got)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := TruncateRunes("héllo wörld", 5); got != "héllo" {
		t.Errorf("TruncateRunes() = %q", got)
	}
	if got := TruncateRunes("short", 10); got != "short" {
		t.Errorf("TruncateRunes() = %q", got)
	}
	if got := TruncateRunes("x", 0); got != "" {
		t.Errorf("TruncateRunes(0) = %q", got)
	}
}
