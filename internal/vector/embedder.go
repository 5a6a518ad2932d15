// Package vector provides text embedders and the vector math used by the
// similarity cache.
package vector

import "context"

const (
	// DefaultEmbeddingDimensions is the size of vectors produced by the local embedders.
	// It matches the small sentence-embedding models commonly used for semantic caches.
	DefaultEmbeddingDimensions = 384
)

// Embedder defines the interface for creating vector embeddings from text.
type Embedder interface {
	// CreateEmbedding converts text into a vector representation.
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)

	// Dimensions reports the fixed length of every vector this embedder returns.
	Dimensions() int

	// Initialize sets up the embedder with any required configuration.
	Initialize() error
}
