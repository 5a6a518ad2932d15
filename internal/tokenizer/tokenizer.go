// Package tokenizer approximates provider token counts and splits text into
// words and sentences for prompt budgeting.
package tokenizer

import (
	"strings"
	"unicode"
)

const (
	// CharsPerToken is the rule-of-thumb ratio of characters to BPE tokens for English text.
	CharsPerToken = 4

	// Roughly four tokens for every three whitespace-separated words.
	tokensPerWordNum = 4
	tokensPerWordDen = 3

	// MinOutputTokens is the smallest output budget handed to a provider.
	MinOutputTokens = 16
)

// Estimator provides token count estimation for text content.
type Estimator interface {
	// CountTokens returns the estimated token count for the given text.
	CountTokens(text string) int
}

// HeuristicEstimator estimates tokens from character and word counts.
// It never reports fewer tokens than words.
type HeuristicEstimator struct{}

// NewHeuristicEstimator returns the default estimator.
func NewHeuristicEstimator() HeuristicEstimator {
	return HeuristicEstimator{}
}

// CountTokens implements Estimator.
func (HeuristicEstimator) CountTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	byChars := (len(text) + CharsPerToken - 1) / CharsPerToken
	byWords := wordsToTokens(CountWords(text))
	if byWords > byChars {
		return byWords
	}
	return byChars
}

// EstimateOutputTokens converts a target word count into an output token budget.
func EstimateOutputTokens(words int) int {
	n := wordsToTokens(words)
	if n < MinOutputTokens {
		return MinOutputTokens
	}
	return n
}

// Words splits text on Unicode whitespace.
func Words(text string) []string {
	return strings.Fields(text)
}

// CountWords returns the number of whitespace-separated words.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// Sentences splits text on '.', '!' and '?' and returns the trimmed, non-empty pieces
// without their terminators.
func Sentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimFunc(p, unicode.IsSpace)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}

// TruncateRunes cuts text to at most n runes.
func TruncateRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

func wordsToTokens(words int) int {
	return (words*tokensPerWordNum + tokensPerWordDen - 1) / tokensPerWordDen
}
