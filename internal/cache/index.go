package cache

import (
	"fmt"
	"sort"

	"github.com/localrivet/smartsummary/internal/vector"
)

// IndexHit is a single nearest-neighbour result. Position is the insertion
// position of the vector within the index.
type IndexHit struct {
	Position int
	Score    float64
}

// Index is a nearest-neighbour search structure over fixed-size vectors.
// Positions are assigned in insertion order starting at zero and are reset by Reset.
// Implementations need not be safe for concurrent use; SimilarityCache serialises writers
// and only calls Search concurrently with other Search calls.
type Index interface {
	Add(vec []float32) error
	Search(query []float32, k int) ([]IndexHit, error)
	Len() int
	Reset()
}

// IndexFactory creates an empty index for vectors of the given dimensionality.
type IndexFactory func(dimensions int) Index

// LinearIndex is an exact index that scores every stored vector on each search.
type LinearIndex struct {
	dimensions int
	vectors    [][]float32
}

// NewLinearIndex creates an empty LinearIndex. It satisfies IndexFactory.
func NewLinearIndex(dimensions int) Index {
	return &LinearIndex{dimensions: dimensions}
}

// Add implements Index.
func (l *LinearIndex) Add(vec []float32) error {
	if len(vec) != l.dimensions {
		return fmt.Errorf("vector has %d dimensions, index expects %d", len(vec), l.dimensions)
	}
	l.vectors = append(l.vectors, vec)
	return nil
}

// Search implements Index. Results are ordered by descending score; equal scores
// keep insertion order.
func (l *LinearIndex) Search(query []float32, k int) ([]IndexHit, error) {
	if k <= 0 || len(l.vectors) == 0 {
		return nil, nil
	}
	if len(query) != l.dimensions {
		return nil, fmt.Errorf("query has %d dimensions, index expects %d", len(query), l.dimensions)
	}

	hits := make([]IndexHit, 0, len(l.vectors))
	for i, v := range l.vectors {
		score, err := vector.CosineSimilarity(query, v)
		if err != nil {
			// Zero vectors cannot be compared; they never match.
			continue
		}
		hits = append(hits, IndexHit{Position: i, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len implements Index.
func (l *LinearIndex) Len() int {
	return len(l.vectors)
}

// Reset implements Index.
func (l *LinearIndex) Reset() {
	l.vectors = nil
}
