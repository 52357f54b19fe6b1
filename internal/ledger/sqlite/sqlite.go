// Package sqlite implements ledger.Ledger on a SQLite database.
// Each batch runs in a single transaction, so batches are atomic.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"todosync/internal/ledger"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	content TEXT NOT NULL,
	completed INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0
);`

// Ledger is a SQLite-backed ledger.Ledger.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database at path and applies the schema.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)

	l := New(db)
	if err := l.Init(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return l, nil
}

// New wraps an existing database handle. Call Init before use on a fresh database.
func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Init creates the tasks table if it does not exist.
func (l *Ledger) Init(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, schema)
	return err
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// BatchCreate implements ledger.Ledger.
func (l *Ledger) BatchCreate(ctx context.Context, contents []string) ([]ledger.Created, error) {
	if len(contents) == 0 {
		return nil, ledger.ErrEmptyBatch
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	created := make([]ledger.Created, 0, len(contents))
	for i, content := range contents {
		res, err := tx.ExecContext(ctx, `INSERT INTO tasks (content, completed, deleted) VALUES (?, 0, 0)`, content)
		if err != nil {
			return nil, fmt.Errorf("insert task %d: %w", i, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("insert task %d: %w", i, err)
		}
		created = append(created, ledger.Created{
			ID:      ledger.RemoteID(strconv.FormatInt(id, 10)),
			Content: content,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create batch: %w", err)
	}
	return created, nil
}

// BatchMutate implements ledger.Ledger.
func (l *Ledger) BatchMutate(ctx context.Context, ops []ledger.Op) (ledger.MutateResult, error) {
	if len(ops) == 0 {
		return ledger.MutateResult{}, ledger.ErrEmptyBatch
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.MutateResult{}, fmt.Errorf("begin mutate batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, op := range ops {
		if err := applyOp(ctx, tx, op); err != nil {
			return ledger.MutateResult{}, fmt.Errorf("op %d %s: %w", i, op, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return ledger.MutateResult{}, fmt.Errorf("commit mutate batch: %w", err)
	}
	return ledger.MutateResult{}, nil
}

func applyOp(ctx context.Context, tx *sql.Tx, op ledger.Op) error {
	id, err := strconv.ParseInt(string(op.ID), 10, 64)
	if err != nil {
		return ledger.ErrUnknownTask
	}

	var query string
	switch op.Kind {
	case ledger.OpToggle:
		query = `UPDATE tasks SET completed = 1 - completed WHERE id = ? AND deleted = 0`
	case ledger.OpDelete:
		query = `UPDATE tasks SET deleted = 1 WHERE id = ? AND deleted = 0`
	default:
		return fmt.Errorf("unsupported kind %s", op.Kind)
	}

	res, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ledger.ErrUnknownTask
	}
	return nil
}

// ListAll implements ledger.Ledger.
func (l *Ledger) ListAll(ctx context.Context) ([]ledger.Record, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT id, content, completed, deleted FROM tasks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	//nolint:prealloc // result count unknown from SQL query
	var records []ledger.Record
	for rows.Next() {
		var (
			id        int64
			content   string
			completed bool
			deleted   bool
		)
		if err := rows.Scan(&id, &content, &completed, &deleted); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		records = append(records, ledger.Record{
			ID:        ledger.RemoteID(strconv.FormatInt(id, 10)),
			Content:   content,
			Completed: completed,
			Deleted:   deleted,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
