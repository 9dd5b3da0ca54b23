// Package sqlite provides a SQLite-backed implementation of paylog.Repository.
//
// WAL mode is enabled on Open so that readers never block writers — the
// workers append while an operator (or a test) may be reading the history.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jcmexdev/shop-orders/internal/paylog"

	// Register the pure-Go SQLite driver. modernc.org/sqlite avoids CGO,
	// keeping the Docker/Alpine build simple.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. The table is append-only: one
// immutable row per gateway attempt.
const schema = `
CREATE TABLE IF NOT EXISTS payment_attempts (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Business identifier; not UNIQUE because an order can be retried.
    order_id      INTEGER     NOT NULL,

    -- Queue job that performed the attempt.
    job_id        TEXT        NOT NULL,

    -- APPROVED / DECLINED / ERROR.
    outcome       TEXT        NOT NULL,

    -- Amount submitted to the gateway.
    amount        REAL        NOT NULL,

    -- JSON structured error for non-approved attempts, '' on approval.
    error_details TEXT        NOT NULL DEFAULT '',

    -- W3C trace_id / span_id from the active OTel span, if any.
    trace_id      TEXT        NOT NULL DEFAULT '',
    span_id       TEXT        NOT NULL DEFAULT '',

    -- RFC3339 stored as TEXT, SQLite idiom.
    created_at    TEXT        NOT NULL
);

-- The common query: "all attempts for order X in order".
CREATE INDEX IF NOT EXISTS idx_payment_attempts_order_id ON payment_attempts(order_id, created_at);
`

// Repository is the SQLite implementation of paylog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at the given path and applies
// the schema.
func Open(path string) (*Repository, error) {
	// WAL enables concurrent readers; busy_timeout waits for locks instead
	// of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("paylog: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("paylog: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends an attempt row. Safe to call concurrently.
func (r *Repository) Save(ctx context.Context, attempt *paylog.Attempt) error {
	const q = `
		INSERT INTO payment_attempts
			(order_id, job_id, outcome, amount, error_details, trace_id, span_id, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		attempt.OrderID,
		attempt.JobID,
		string(attempt.Outcome),
		attempt.Amount,
		attempt.ErrorDetails,
		attempt.TraceID,
		attempt.SpanID,
		attempt.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("paylog: save attempt for order %d: %w", attempt.OrderID, err)
	}
	return nil
}

// ListByOrder returns the attempt history of an order, oldest first.
func (r *Repository) ListByOrder(ctx context.Context, orderID int64) ([]paylog.Attempt, error) {
	const q = `
		SELECT order_id, job_id, outcome, amount, error_details, trace_id, span_id, created_at
		FROM   payment_attempts
		WHERE  order_id = ?
		ORDER  BY created_at, id`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("paylog: list attempts for order %d: %w", orderID, err)
	}
	defer rows.Close()

	var attempts []paylog.Attempt
	for rows.Next() {
		var a paylog.Attempt
		var createdAt string
		err := rows.Scan(&a.OrderID, &a.JobID, &a.Outcome, &a.Amount,
			&a.ErrorDetails, &a.TraceID, &a.SpanID, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("paylog: scan attempt: %w", err)
		}
		a.CreatedAt, err = parseRFC3339(createdAt)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("paylog: list attempts for order %d: %w", orderID, err)
	}

	return attempts, nil
}

// parseRFC3339 parses the timestamp strings stored in SQLite. SQLite has no
// native datetime type; we store RFC3339 TEXT.
func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("paylog: parse time %q: %w", s, err)
	}
	return t, nil
}
