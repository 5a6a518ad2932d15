package vector

import (
	"context"
	"crypto/md5"
	"encoding/binary"
)

// MockEmbedder creates deterministic pseudo-random unit vectors seeded from an
// MD5 of the text. Identical texts map to identical vectors; any edit produces an
// unrelated vector, which makes it useful for exact-match tests.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder creates a new MockEmbedder with the specified dimensions.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 128
	}
	return &MockEmbedder{
		dimensions: dimensions,
	}
}

// Initialize sets up the embedder with any required configuration.
func (e *MockEmbedder) Initialize() error {
	return nil
}

// Dimensions implements Embedder.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// CreateEmbedding generates a mock embedding for the given text.
func (e *MockEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	embedding := make([]float32, e.dimensions)
	hash := md5.Sum([]byte(text))

	for i := 0; i < e.dimensions; i++ {
		// Use 4 bytes from the hash as a seed for each dimension, wrapping around
		hashIdx := (i * 4) % len(hash)
		seed := binary.LittleEndian.Uint32(append(hash[hashIdx:], hash[:4]...))
		embedding[i] = float32(seed%1000)/500.0 - 1.0
	}

	Normalize(embedding)
	return embedding, nil
}
