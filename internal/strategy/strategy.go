// Package strategy decides how a request should be summarised based on its
// size, its cost budget and what the similarity cache already holds.
package strategy

import (
	"github.com/localrivet/smartsummary/internal/cache"
	"github.com/localrivet/smartsummary/internal/classifier"
	"github.com/localrivet/smartsummary/internal/tokenizer"
)

// Strategy names a summarisation approach.
type Strategy string

const (
	CacheHit     Strategy = "cache_hit"
	Compress     Strategy = "compress"
	Chunk        Strategy = "chunk"
	Template     Strategy = "template"
	ShallowTrain Strategy = "shallow_train"
)

// All lists every strategy.
var All = []Strategy{CacheHit, Compress, Chunk, Template, ShallowTrain}

// DefaultCostBudget is the per-request budget in USD when the caller gives none.
const DefaultCostBudget = 0.01

// Thresholds are the cut-offs used by Select.
type Thresholds struct {
	CacheHitSimilarity float64 `json:"cache_hit_similarity"`
	SimilarSimilarity  float64 `json:"similar_similarity"`
	LongTextTokens     int     `json:"long_text_tokens"`
	ChunkBudget        float64 `json:"chunk_budget"`
}

// DefaultThresholds returns the thresholds used when none are configured.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CacheHitSimilarity: 0.95,
		SimilarSimilarity:  0.80,
		LongTextTokens:     2000,
		ChunkBudget:        0.005,
	}
}

// TextContext describes one request's input. It is computed once and not modified.
type TextContext struct {
	Text            string            `json:"-"`
	CharLength      int               `json:"char_length"`
	WordCount       int               `json:"word_count"`
	EstimatedTokens int               `json:"estimated_tokens"`
	Complexity      float64           `json:"complexity"`
	Domain          classifier.Domain `json:"domain"`
	CostBudget      float64           `json:"cost_budget"`
	MaxLength       int               `json:"max_length"`
}

// NewTextContext analyses text. A non-positive budget selects DefaultCostBudget.
func NewTextContext(text string, maxLength int, budget float64, est tokenizer.Estimator, cls *classifier.Classifier) TextContext {
	if budget <= 0 {
		budget = DefaultCostBudget
	}
	analysis := cls.Classify(text)
	return TextContext{
		Text:            text,
		CharLength:      len([]rune(text)),
		WordCount:       tokenizer.CountWords(text),
		EstimatedTokens: est.CountTokens(text),
		Complexity:      analysis.Complexity,
		Domain:          analysis.Domain,
		CostBudget:      budget,
		MaxLength:       maxLength,
	}
}

// Selector chooses a Strategy. It is stateless and safe for concurrent use.
type Selector struct {
	thresholds Thresholds
}

// NewSelector creates a Selector with the given thresholds.
func NewSelector(t Thresholds) *Selector {
	return &Selector{thresholds: t}
}

// Thresholds returns the selector's configuration.
func (s *Selector) Thresholds() Thresholds {
	return s.thresholds
}

// Select applies the rules in order and returns the first that matches:
// a near-identical cached entry, then long-text handling, then few-shot
// prompting from similar entries, then a domain template.
// matches must be sorted by descending score.
func (s *Selector) Select(tc TextContext, matches []cache.Match) Strategy {
	t := s.thresholds

	if len(matches) > 0 && matches[0].Score >= t.CacheHitSimilarity {
		return CacheHit
	}

	if tc.EstimatedTokens > t.LongTextTokens {
		if tc.CostBudget > t.ChunkBudget {
			return Chunk
		}
		return Compress
	}

	for _, m := range matches {
		if m.Score >= t.SimilarSimilarity {
			return ShallowTrain
		}
	}

	return Template
}

// Similar returns the matches scoring at or above the similar threshold, in order.
func (s *Selector) Similar(matches []cache.Match) []cache.Match {
	var out []cache.Match
	for _, m := range matches {
		if m.Score >= s.thresholds.SimilarSimilarity {
			out = append(out, m)
		}
	}
	return out
}
