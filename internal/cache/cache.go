// Package cache provides the in-memory similarity cache of previously generated
// summaries, searched by embedding similarity.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/localrivet/smartsummary/internal/errortypes"
	"github.com/localrivet/smartsummary/internal/telemetry"
	"github.com/localrivet/smartsummary/internal/util"
	"github.com/localrivet/smartsummary/internal/vector"
)

const (
	// DefaultCapacity is the maximum number of entries kept before eviction.
	DefaultCapacity = 1000

	// DefaultEvictFraction is the share of capacity dropped, oldest first, on overflow.
	DefaultEvictFraction = 0.2
)

// Entry is a cached (text, summary) pair.
type Entry struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Summary   string    `json:"summary"`
	Strategy  string    `json:"strategy"`
	Embedding []float32 `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Match is an entry returned by FindSimilar with its cosine similarity to the query.
type Match struct {
	Entry
	Score float64 `json:"score"`
}

// Options configures a SimilarityCache.
type Options struct {
	Capacity      int
	EvictFraction float64
	NewIndex      IndexFactory
	Metrics       *telemetry.MetricsCollector
	Logger        *slog.Logger
	Now           func() time.Time
}

// Stats describes the cache at a point in time.
type Stats struct {
	Entries   int   `json:"entries"`
	Capacity  int   `json:"capacity"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Lookups   int64 `json:"lookups"`
	Inserts   int64 `json:"inserts"`
	Evictions int64 `json:"evictions"`
}

// SimilarityCache stores summaries keyed by the embedding of their source text.
// Searches take a read lock and run concurrently; inserts, eviction rebuilds and
// Clear take the write lock.
type SimilarityCache struct {
	embedder      vector.Embedder
	dimensions    int
	capacity      int
	evictFraction float64
	newIndex      IndexFactory
	metrics       *telemetry.MetricsCollector
	logger        *slog.Logger
	now           func() time.Time

	mu      sync.RWMutex
	entries []Entry
	index   Index

	hits      atomic.Int64
	misses    atomic.Int64
	lookups   atomic.Int64
	inserts   atomic.Int64
	evictions atomic.Int64
}

// New creates a SimilarityCache. The embedder's dimensionality is fixed for the
// lifetime of the cache.
func New(embedder vector.Embedder, opts Options) *SimilarityCache {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.EvictFraction <= 0 || opts.EvictFraction > 1 {
		opts.EvictFraction = DefaultEvictFraction
	}
	if opts.NewIndex == nil {
		opts.NewIndex = NewLinearIndex
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &SimilarityCache{
		embedder:      embedder,
		dimensions:    embedder.Dimensions(),
		capacity:      opts.Capacity,
		evictFraction: opts.EvictFraction,
		newIndex:      opts.NewIndex,
		metrics:       opts.Metrics,
		logger:        opts.Logger,
		now:           opts.Now,
	}
}

// FindSimilar returns up to k cached entries ordered by descending similarity to text.
// An empty cache returns an empty result without embedding the query.
func (c *SimilarityCache) FindSimilar(ctx context.Context, text string, k int) ([]Match, error) {
	c.lookups.Add(1)

	if k <= 0 || c.Len() == 0 {
		return []Match{}, nil
	}

	start := time.Now()
	query, err := c.embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.index == nil {
		return []Match{}, nil
	}

	hits, err := c.index.Search(query, k)
	if err != nil {
		return nil, errortypes.InternalError(err, "similarity search failed")
	}

	matches := make([]Match, 0, len(hits))
	for _, h := range hits {
		if h.Position < 0 || h.Position >= len(c.entries) {
			continue
		}
		matches = append(matches, Match{Entry: c.entries[h.Position], Score: h.Score})
	}

	if c.metrics != nil {
		c.metrics.RecordTimer(telemetry.MetricCacheLookupTime, time.Since(start))
	}
	return matches, nil
}

// Insert embeds text and appends a new entry. When the entry count exceeds the
// capacity the oldest entries are evicted and the index is rebuilt.
func (c *SimilarityCache) Insert(ctx context.Context, text, summary, strategy string) error {
	vec, err := c.embed(ctx, text)
	if err != nil {
		return err
	}

	now := c.now()
	entry := Entry{
		ID:        util.GenerateHash(text, now.UnixNano()),
		Text:      text,
		Summary:   summary,
		Strategy:  strategy,
		Embedding: vec,
		CreatedAt: now,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.index == nil {
		c.index = c.newIndex(c.dimensions)
	}
	if err := c.index.Add(vec); err != nil {
		return errortypes.InternalError(err, "failed to index cache entry")
	}
	c.entries = append(c.entries, entry)
	c.inserts.Add(1)

	if len(c.entries) > c.capacity {
		if err := c.evictLocked(); err != nil {
			return err
		}
	}

	if c.metrics != nil {
		c.metrics.SetGauge(telemetry.MetricCacheSize, float64(len(c.entries)))
	}
	return nil
}

// evictLocked drops the oldest batch and rebuilds the index from the survivors
// in their original order. The caller must hold the write lock.
func (c *SimilarityCache) evictLocked() error {
	batch := int(math.Ceil(float64(c.capacity) * c.evictFraction))
	overflow := len(c.entries) - c.capacity
	n := max(batch, overflow)
	if n > len(c.entries) {
		n = len(c.entries)
	}

	survivors := make([]Entry, len(c.entries)-n)
	copy(survivors, c.entries[n:])
	c.entries = survivors

	c.index.Reset()
	for _, e := range c.entries {
		if err := c.index.Add(e.Embedding); err != nil {
			return errortypes.InternalError(err, "failed to rebuild similarity index")
		}
	}

	c.evictions.Add(int64(n))
	if c.metrics != nil {
		c.metrics.IncrementCounter(telemetry.MetricCacheEvictions, int64(n))
	}
	c.logger.Debug("Evicted oldest cache entries", "evicted", n, "remaining", len(c.entries))
	return nil
}

func (c *SimilarityCache) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := c.embedder.CreateEmbedding(ctx, text)
	if err != nil {
		return nil, errortypes.InternalError(err, "failed to embed text")
	}
	if len(vec) != c.dimensions {
		return nil, errortypes.ValidationError(
			fmt.Errorf("embedding has %d dimensions, cache expects %d", len(vec), c.dimensions),
			"embedding dimensionality mismatch")
	}
	return vec, nil
}

// RecordOutcome counts a lookup as a hit or a miss. The cache itself has no
// notion of a hit threshold; callers decide.
func (c *SimilarityCache) RecordOutcome(hit bool) {
	if hit {
		c.hits.Add(1)
		if c.metrics != nil {
			c.metrics.IncrementCounter(telemetry.MetricCacheHits, 1)
		}
		return
	}
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.IncrementCounter(telemetry.MetricCacheMisses, 1)
	}
}

// Len returns the number of cached entries.
func (c *SimilarityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Dimensions returns the fixed embedding size of the cache.
func (c *SimilarityCache) Dimensions() int {
	return c.dimensions
}

// Entries returns a copy of the cached entries, oldest first.
func (c *SimilarityCache) Entries() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Clear removes every entry and returns how many were removed.
func (c *SimilarityCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = nil
	if c.index != nil {
		c.index.Reset()
	}
	if c.metrics != nil {
		c.metrics.SetGauge(telemetry.MetricCacheSize, 0)
	}
	return n
}

// Stats returns a snapshot of cache counters.
func (c *SimilarityCache) Stats() Stats {
	return Stats{
		Entries:   c.Len(),
		Capacity:  c.capacity,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Lookups:   c.lookups.Load(),
		Inserts:   c.inserts.Load(),
		Evictions: c.evictions.Load(),
	}
}
