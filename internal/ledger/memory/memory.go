// Package memory implements ledger.Ledger in process memory.
//
// It follows the reference contract semantics: ids are sequential starting at 1,
// delete is a soft delete, and a mutation batch is applied all-or-nothing.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"todosync/internal/ledger"
)

// Ledger is an in-memory ledger.Ledger.
type Ledger struct {
	mu     sync.RWMutex
	nextID uint64
	tasks  []ledger.Record // index i holds id i+1
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{}
}

// BatchCreate implements ledger.Ledger.
func (l *Ledger) BatchCreate(ctx context.Context, contents []string) ([]ledger.Created, error) {
	if len(contents) == 0 {
		return nil, ledger.ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	created := make([]ledger.Created, 0, len(contents))
	for _, content := range contents {
		l.nextID++
		id := ledger.RemoteID(strconv.FormatUint(l.nextID, 10))
		l.tasks = append(l.tasks, ledger.Record{ID: id, Content: content})
		created = append(created, ledger.Created{ID: id, Content: content})
	}
	return created, nil
}

// BatchMutate implements ledger.Ledger.
// Ops are applied to a copy; the copy replaces the live state only if every op succeeds.
func (l *Ledger) BatchMutate(ctx context.Context, ops []ledger.Op) (ledger.MutateResult, error) {
	if len(ops) == 0 {
		return ledger.MutateResult{}, ledger.ErrEmptyBatch
	}
	if err := ctx.Err(); err != nil {
		return ledger.MutateResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	next := make([]ledger.Record, len(l.tasks))
	copy(next, l.tasks)

	for i, op := range ops {
		idx, ok := l.index(op.ID)
		if !ok || next[idx].Deleted {
			return ledger.MutateResult{}, fmt.Errorf("op %d %s: %w", i, op, ledger.ErrUnknownTask)
		}
		switch op.Kind {
		case ledger.OpToggle:
			next[idx].Completed = !next[idx].Completed
		case ledger.OpDelete:
			next[idx].Deleted = true
		default:
			return ledger.MutateResult{}, fmt.Errorf("op %d: unsupported kind %s", i, op.Kind)
		}
	}

	l.tasks = next
	return ledger.MutateResult{}, nil
}

// ListAll implements ledger.Ledger.
func (l *Ledger) ListAll(ctx context.Context) ([]ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]ledger.Record, len(l.tasks))
	copy(result, l.tasks)
	return result, nil
}

func (l *Ledger) index(id ledger.RemoteID) (int, bool) {
	n, err := strconv.ParseUint(string(id), 10, 64)
	if err != nil || n == 0 || n > uint64(len(l.tasks)) {
		return 0, false
	}
	return int(n - 1), true
}
