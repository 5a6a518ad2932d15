package strategy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/localrivet/smartsummary/internal/cache"
	"github.com/localrivet/smartsummary/internal/classifier"
	"github.com/localrivet/smartsummary/internal/tokenizer"
)

func match(score float64) cache.Match {
	return cache.Match{Entry: cache.Entry{Summary: "s"}, Score: score}
}

func TestSelect(t *testing.T) {
	sel := NewSelector(DefaultThresholds())

	short := TextContext{EstimatedTokens: 100, CostBudget: 0.01}
	longRich := TextContext{EstimatedTokens: 2500, CostBudget: 0.01}
	longPoor := TextContext{EstimatedTokens: 2500, CostBudget: 0.005}

	tests := []struct {
		name    string
		tc      TextContext
		matches []cache.Match
		want    Strategy
	}{
		{"no matches short text", short, nil, Template},
		{"exact hit", short, []cache.Match{match(0.95)}, CacheHit},
		{"hit wins over long text", longRich, []cache.Match{match(0.99)}, CacheHit},
		{"just below hit is shallow train", short, []cache.Match{match(0.949)}, ShallowTrain},
		{"similar entry", short, []cache.Match{match(0.80)}, ShallowTrain},
		{"weak entry", short, []cache.Match{match(0.79)}, Template},
		{"long text with budget", longRich, nil, Chunk},
		{"long text at chunk budget compresses", longPoor, nil, Compress},
		{"long text ignores similar entries", longRich, []cache.Match{match(0.9)}, Chunk},
		{"boundary tokens not long", TextContext{EstimatedTokens: 2000, CostBudget: 0.01}, nil, Template},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sel.Select(tt.tc, tt.matches))
		})
	}
}

func TestSelectCustomThresholds(t *testing.T) {
	sel := NewSelector(Thresholds{CacheHitSimilarity: 0.99, SimilarSimilarity: 0.5, LongTextTokens: 10, ChunkBudget: 1})

	assert.Equal(t, ShallowTrain, sel.Select(TextContext{EstimatedTokens: 5}, []cache.Match{match(0.97)}))
	assert.Equal(t, Compress, sel.Select(TextContext{EstimatedTokens: 11, CostBudget: 0.5}, nil))
}

func TestSimilar(t *testing.T) {
	sel := NewSelector(DefaultThresholds())
	got := sel.Similar([]cache.Match{match(0.9), match(0.85), match(0.5)})
	assert.Len(t, got, 2)
	assert.Empty(t, sel.Similar(nil))
}

func TestNewTextContext(t *testing.T) {
	text := strings.Repeat("The server runs the database function. ", 3)
	tc := NewTextContext(text, 150, 0, tokenizer.NewHeuristicEstimator(), classifier.NewDefault())

	assert.Equal(t, DefaultCostBudget, tc.CostBudget)
	assert.Equal(t, 150, tc.MaxLength)
	assert.Equal(t, 18, tc.WordCount)
	assert.Equal(t, classifier.DomainTechnical, tc.Domain)
	assert.GreaterOrEqual(t, tc.EstimatedTokens, tc.WordCount)
	assert.Equal(t, len(text), tc.CharLength)
}
