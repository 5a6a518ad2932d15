package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/smartsummary/internal/errortypes"
	"github.com/localrivet/smartsummary/internal/telemetry"
	"github.com/localrivet/smartsummary/internal/vector"
)

// tableEmbedder returns fixed vectors for known texts and counts calls.
type tableEmbedder struct {
	dims    int
	vectors map[string][]float32
	calls   atomic.Int64
	err     error
}

func (e *tableEmbedder) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return nil, fmt.Errorf("no vector for %q", text)
}

func (e *tableEmbedder) Dimensions() int   { return e.dims }
func (e *tableEmbedder) Initialize() error { return nil }

func newTableEmbedder() *tableEmbedder {
	return &tableEmbedder{
		dims: 3,
		vectors: map[string][]float32{
			"alpha":      {1, 0, 0},
			"alpha-ish":  {0.9, 0.1, 0},
			"beta":       {0, 1, 0},
			"gamma":      {0, 0, 1},
			"alpha-copy": {1, 0, 0},
		},
	}
}

func TestFindSimilarEmptyCacheDoesNotEmbed(t *testing.T) {
	emb := newTableEmbedder()
	c := New(emb, Options{})

	matches, err := c.FindSimilar(context.Background(), "alpha", 3)
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.Equal(t, int64(0), emb.calls.Load())
}

func TestInsertAndFindSimilarOrdering(t *testing.T) {
	ctx := context.Background()
	c := New(newTableEmbedder(), Options{})

	require.NoError(t, c.Insert(ctx, "beta", "summary beta", "template"))
	require.NoError(t, c.Insert(ctx, "alpha", "summary alpha", "compress"))
	require.NoError(t, c.Insert(ctx, "gamma", "summary gamma", "template"))

	matches, err := c.FindSimilar(ctx, "alpha-ish", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "alpha", matches[0].Text)
	assert.Equal(t, "summary alpha", matches[0].Summary)
	assert.Equal(t, "compress", matches[0].Strategy)
	assert.Len(t, matches[0].ID, 16)
	assert.NotEqual(t, matches[0].ID, matches[1].ID)
	assert.Greater(t, matches[0].Score, 0.99)
	assert.Equal(t, "beta", matches[1].Text)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)

	exact, err := c.FindSimilar(ctx, "alpha", 1)
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.InDelta(t, 1.0, exact[0].Score, 1e-9)
}

func TestFindSimilarKLargerThanCache(t *testing.T) {
	ctx := context.Background()
	c := New(newTableEmbedder(), Options{})
	require.NoError(t, c.Insert(ctx, "alpha", "a", "template"))

	matches, err := c.FindSimilar(ctx, "beta", 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	none, err := c.FindSimilar(ctx, "beta", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestEqualScoresKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	c := New(newTableEmbedder(), Options{})
	require.NoError(t, c.Insert(ctx, "alpha", "first", "template"))
	require.NoError(t, c.Insert(ctx, "alpha-copy", "second", "template"))

	matches, err := c.FindSimilar(ctx, "alpha", 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "first", matches[0].Summary)
	assert.Equal(t, "second", matches[1].Summary)
}

func TestEvictionDropsOldestAndRebuildsIndex(t *testing.T) {
	ctx := context.Background()
	emb := vector.NewHashingEmbedder(64)
	metrics := telemetry.NewMetricsCollector()
	c := New(emb, Options{Capacity: 10, Metrics: metrics})

	for i := 0; i < 11; i++ {
		require.NoError(t, c.Insert(ctx, fmt.Sprintf("document number %d", i), fmt.Sprintf("s%d", i), "template"))
	}

	// 11 > 10 triggers eviction of ceil(10*0.2) = 2 oldest entries.
	assert.Equal(t, 9, c.Len())
	entries := c.Entries()
	assert.Equal(t, "s2", entries[0].Summary)
	assert.Equal(t, "s10", entries[len(entries)-1].Summary)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Evictions)
	assert.Equal(t, int64(11), stats.Inserts)
	assert.Equal(t, int64(2), metrics.GetCounter(telemetry.MetricCacheEvictions))
	assert.Equal(t, float64(9), metrics.GetGauge(telemetry.MetricCacheSize))

	// Every surviving entry is still findable as its own best match.
	for i := 2; i <= 10; i++ {
		matches, err := c.FindSimilar(ctx, fmt.Sprintf("document number %d", i), 1)
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, fmt.Sprintf("s%d", i), matches[0].Summary)
	}

	matches, err := c.FindSimilar(ctx, "document number 0", 20)
	require.NoError(t, err)
	for _, m := range matches {
		assert.NotEqual(t, "s0", m.Summary)
		assert.NotEqual(t, "s1", m.Summary)
	}
}

func TestEmbedderErrors(t *testing.T) {
	ctx := context.Background()
	emb := newTableEmbedder()
	c := New(emb, Options{})
	require.NoError(t, c.Insert(ctx, "alpha", "a", "template"))

	emb.err = errors.New("embedding backend down")
	_, err := c.FindSimilar(ctx, "alpha", 1)
	require.Error(t, err)
	assert.Equal(t, errortypes.ErrorTypeInternal, errortypes.TypeOf(err))

	err = c.Insert(ctx, "beta", "b", "template")
	require.Error(t, err)
	assert.Equal(t, 1, c.Len())
}

func TestDimensionMismatchRejected(t *testing.T) {
	emb := newTableEmbedder()
	emb.vectors["short"] = []float32{1, 0}
	c := New(emb, Options{})

	err := c.Insert(context.Background(), "short", "s", "template")
	require.Error(t, err)
	assert.True(t, errortypes.IsValidationError(err))
	assert.Equal(t, 0, c.Len())
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	c := New(newTableEmbedder(), Options{})
	require.NoError(t, c.Insert(ctx, "alpha", "a", "template"))
	require.NoError(t, c.Insert(ctx, "beta", "b", "template"))

	assert.Equal(t, 2, c.Clear())
	assert.Equal(t, 0, c.Len())

	matches, err := c.FindSimilar(ctx, "alpha", 1)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestCustomIndexFactory(t *testing.T) {
	ctx := context.Background()
	var created atomic.Int64
	factory := func(dims int) Index {
		created.Add(1)
		return NewLinearIndex(dims)
	}
	c := New(newTableEmbedder(), Options{NewIndex: factory})
	require.NoError(t, c.Insert(ctx, "alpha", "a", "template"))
	require.NoError(t, c.Insert(ctx, "beta", "b", "template"))
	assert.Equal(t, int64(1), created.Load())
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := New(vector.NewHashingEmbedder(32), Options{Capacity: 50})

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = c.Insert(ctx, fmt.Sprintf("writer %d text %d", w, i), "s", "template")
			}
		}(w)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				matches, err := c.FindSimilar(ctx, fmt.Sprintf("writer %d text %d", w, i), 3)
				assert.NoError(t, err)
				assert.LessOrEqual(t, len(matches), 3)
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 50)
}

func TestLinearIndex(t *testing.T) {
	idx := NewLinearIndex(2)
	require.NoError(t, idx.Add([]float32{1, 0}))
	require.NoError(t, idx.Add([]float32{0, 1}))
	require.Error(t, idx.Add([]float32{1, 0, 0}))
	assert.Equal(t, 2, idx.Len())

	hits, err := idx.Search([]float32{0, 2}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, 1, hits[0].Position)

	_, err = idx.Search([]float32{1}, 1)
	require.Error(t, err)

	idx.Reset()
	assert.Equal(t, 0, idx.Len())
}

func TestRecordOutcome(t *testing.T) {
	metrics := telemetry.NewMetricsCollector()
	c := New(newTableEmbedder(), Options{Metrics: metrics})

	c.RecordOutcome(true)
	c.RecordOutcome(false)
	c.RecordOutcome(false)

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, int64(2), metrics.GetCounter(telemetry.MetricCacheMisses))
}
