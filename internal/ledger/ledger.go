// Package ledger records per-request token usage and cost.
package ledger

import (
	"context"
	"time"
)

// DefaultPath keeps the ledger in memory for the life of the process.
const DefaultPath = "file::memory:?mode=memory"

// Usage is one summarisation request as billed.
type Usage struct {
	RequestID        string    `json:"request_id"`
	Strategy         string    `json:"strategy"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	Cost             float64   `json:"cost"`
	CacheHit         bool      `json:"cache_hit"`
	CreatedAt        time.Time `json:"created_at"`
}

// Totals aggregates every recorded Usage.
type Totals struct {
	Requests         int64   `json:"requests"`
	CacheHits        int64   `json:"cache_hits"`
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

// Ledger defines storage for usage records.
type Ledger interface {
	// Record appends a usage row.
	Record(ctx context.Context, u Usage) error

	// Totals sums every recorded row.
	Totals(ctx context.Context) (Totals, error)

	// Recent returns up to n rows, newest first.
	Recent(ctx context.Context, n int) ([]Usage, error)

	// Close releases the underlying storage.
	Close() error
}
