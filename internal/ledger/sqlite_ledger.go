package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"crawshaw.io/sqlite"

	"github.com/localrivet/smartsummary/internal/errortypes"
)

// SQLiteLedger is a Ledger backed by a single SQLite connection.
type SQLiteLedger struct {
	mu     sync.Mutex
	conn   *sqlite.Conn
	dbPath string
}

// Open opens (creating if needed) the ledger at dbPath. An empty path selects DefaultPath.
func Open(dbPath string) (*SQLiteLedger, error) {
	if dbPath == "" {
		dbPath = DefaultPath
	}

	conn, err := sqlite.OpenConn(dbPath,
		sqlite.SQLITE_OPEN_CREATE|sqlite.SQLITE_OPEN_READWRITE|sqlite.SQLITE_OPEN_URI|sqlite.SQLITE_OPEN_NOMUTEX)
	if err != nil {
		return nil, errortypes.DatabaseError(err, "failed to open usage ledger").WithField("path", dbPath)
	}

	l := &SQLiteLedger{conn: conn, dbPath: dbPath}
	if err := l.createTable(); err != nil {
		conn.Close()
		return nil, err
	}
	return l, nil
}

// createTable creates the usage table if it doesn't exist.
func (l *SQLiteLedger) createTable() error {
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS usage (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		strategy TEXT NOT NULL,
		model TEXT NOT NULL,
		prompt_tokens INTEGER NOT NULL,
		completion_tokens INTEGER NOT NULL,
		cost REAL NOT NULL,
		cache_hit INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);`

	stmt, err := l.conn.Prepare(createTableSQL)
	if err != nil {
		return errortypes.DatabaseError(err, "failed to prepare create table statement")
	}
	defer stmt.Reset()

	if _, err := stmt.Step(); err != nil {
		return errortypes.DatabaseError(err, "failed to create usage table")
	}
	return nil
}

// interruptOn makes ctx cancellation abort the statement in progress. The
// returned func must be called before the lock is released.
func (l *SQLiteLedger) interruptOn(ctx context.Context) func() {
	l.conn.SetInterrupt(ctx.Done())
	return func() { l.conn.SetInterrupt(nil) }
}

// Record implements Ledger.
func (l *SQLiteLedger) Record(ctx context.Context, u Usage) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.interruptOn(ctx)()

	stmt, err := l.conn.Prepare(`
	INSERT INTO usage (request_id, strategy, model, prompt_tokens, completion_tokens, cost, cache_hit, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return errortypes.DatabaseError(err, "failed to prepare insert statement")
	}
	defer stmt.Reset()

	stmt.BindText(1, u.RequestID)
	stmt.BindText(2, u.Strategy)
	stmt.BindText(3, u.Model)
	stmt.BindInt64(4, int64(u.PromptTokens))
	stmt.BindInt64(5, int64(u.CompletionTokens))
	stmt.BindFloat(6, u.Cost)
	stmt.BindBool(7, u.CacheHit)
	stmt.BindInt64(8, u.CreatedAt.UnixMilli())

	if _, err := stmt.Step(); err != nil {
		return errortypes.DatabaseError(err, "failed to record usage").WithField("request_id", u.RequestID)
	}
	return nil
}

// Totals implements Ledger.
func (l *SQLiteLedger) Totals(ctx context.Context) (Totals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.interruptOn(ctx)()

	stmt, err := l.conn.Prepare(`
	SELECT COUNT(*),
		COALESCE(SUM(cache_hit), 0),
		COALESCE(SUM(prompt_tokens), 0),
		COALESCE(SUM(completion_tokens), 0),
		COALESCE(SUM(cost), 0.0)
	FROM usage;`)
	if err != nil {
		return Totals{}, errortypes.DatabaseError(err, "failed to prepare totals statement")
	}
	defer stmt.Reset()

	hasRow, err := stmt.Step()
	if err != nil {
		return Totals{}, errortypes.DatabaseError(err, "failed to read usage totals")
	}
	if !hasRow {
		return Totals{}, nil
	}

	return Totals{
		Requests:         stmt.ColumnInt64(0),
		CacheHits:        stmt.ColumnInt64(1),
		PromptTokens:     stmt.ColumnInt64(2),
		CompletionTokens: stmt.ColumnInt64(3),
		Cost:             stmt.ColumnFloat(4),
	}, nil
}

// Recent implements Ledger.
func (l *SQLiteLedger) Recent(ctx context.Context, n int) ([]Usage, error) {
	if n <= 0 {
		return []Usage{}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.interruptOn(ctx)()

	stmt, err := l.conn.Prepare(`
	SELECT request_id, strategy, model, prompt_tokens, completion_tokens, cost, cache_hit, created_at
	FROM usage ORDER BY id DESC LIMIT ?;`)
	if err != nil {
		return nil, errortypes.DatabaseError(err, "failed to prepare select statement")
	}
	defer stmt.Reset()

	stmt.BindInt64(1, int64(n))

	rows := make([]Usage, 0, n)
	for {
		hasRow, err := stmt.Step()
		if err != nil {
			return nil, errortypes.DatabaseError(err, "failed to read usage rows")
		}
		if !hasRow {
			break
		}

		rows = append(rows, Usage{
			RequestID:        stmt.ColumnText(0),
			Strategy:         stmt.ColumnText(1),
			Model:            stmt.ColumnText(2),
			PromptTokens:     stmt.ColumnInt(3),
			CompletionTokens: stmt.ColumnInt(4),
			Cost:             stmt.ColumnFloat(5),
			CacheHit:         stmt.ColumnInt64(6) != 0,
			CreatedAt:        time.UnixMilli(stmt.ColumnInt64(7)),
		})
	}
	return rows, nil
}

// Close implements Ledger.
func (l *SQLiteLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	if err != nil {
		return errortypes.DatabaseError(fmt.Errorf("close %s: %w", l.dbPath, err), "failed to close usage ledger")
	}
	return nil
}
