package ledger

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/smartsummary/internal/errortypes"
)

func openTestLedger(t *testing.T) *SQLiteLedger {
	t.Helper()
	l, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndTotals(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	totals, err := l.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, Totals{}, totals)

	require.NoError(t, l.Record(ctx, Usage{
		RequestID: "r1", Strategy: "template", Model: "gpt-3.5-turbo",
		PromptTokens: 100, CompletionTokens: 40, Cost: 0.00011,
	}))
	require.NoError(t, l.Record(ctx, Usage{
		RequestID: "r2", Strategy: "cache_hit", CacheHit: true,
	}))

	totals, err = l.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), totals.Requests)
	assert.Equal(t, int64(1), totals.CacheHits)
	assert.Equal(t, int64(100), totals.PromptTokens)
	assert.Equal(t, int64(40), totals.CompletionTokens)
	assert.InDelta(t, 0.00011, totals.Cost, 1e-12)
}

func TestRecentNewestFirst(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Record(ctx, Usage{
			RequestID: fmt.Sprintf("r%d", i),
			Strategy:  "compress",
			Model:     "m",
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
		}))
	}

	rows, err := l.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "r4", rows[0].RequestID)
	assert.Equal(t, "r2", rows[2].RequestID)
	assert.True(t, rows[0].CreatedAt.Equal(created.Add(4*time.Minute)))
	assert.Equal(t, "compress", rows[0].Strategy)

	none, err := l.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFileBackedLedgerPersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "usage.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, Usage{RequestID: "r1", Strategy: "template", Model: "m", Cost: 0.5}))
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	totals, err := reopened.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.Requests)
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "usage.db"))
	require.Error(t, err)
	assert.True(t, errortypes.IsDatabaseError(err))
}

func TestConcurrentRecord(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, l.Record(ctx, Usage{RequestID: fmt.Sprintf("%d-%d", w, i), Strategy: "template", Model: "m"}))
			}
		}(w)
	}
	wg.Wait()

	totals, err := l.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(100), totals.Requests)
}
