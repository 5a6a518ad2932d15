package vector

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashingEmbedder is a local bag-of-words embedder. Lowercased word unigrams and
// bigrams are hashed into a fixed number of buckets with a signed hash, and the
// result is normalised to unit length. Texts that share most of their vocabulary
// land close together, so near-duplicate inputs score high cosine similarity
// without a network call.
type HashingEmbedder struct {
	dimensions   int
	bigramWeight float32
}

// NewHashingEmbedder creates a HashingEmbedder. Non-positive dimensions select
// DefaultEmbeddingDimensions.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	return &HashingEmbedder{dimensions: dimensions, bigramWeight: 0.5}
}

// Initialize implements Embedder.
func (e *HashingEmbedder) Initialize() error {
	return nil
}

// Dimensions implements Embedder.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// CreateEmbedding implements Embedder.
func (e *HashingEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, e.dimensions)
	terms := tokenize(text)
	if len(terms) == 0 {
		// Punctuation-only or empty input still gets a stable, non-zero vector.
		e.add(vec, "\x00"+text, 1)
		Normalize(vec)
		return vec, nil
	}

	for i, term := range terms {
		e.add(vec, term, 1)
		if i > 0 {
			e.add(vec, terms[i-1]+" "+term, e.bigramWeight)
		}
	}

	Normalize(vec)
	return vec, nil
}

func (e *HashingEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	bucket := int(sum % uint64(e.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[bucket] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
