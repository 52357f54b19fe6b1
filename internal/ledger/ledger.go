// Package ledger defines the backend-agnostic contract of the authoritative task ledger.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Ledger is the authoritative task store.
// The reconciler talks to every backend through this interface only.
// Backends never see client-side temporary ids.
type Ledger interface {
	// BatchCreate creates one task per content entry, in order.
	// The returned slice corresponds positionally to contents.
	// Non-atomic backends may return a prefix together with an error.
	BatchCreate(ctx context.Context, contents []string) ([]Created, error)

	// BatchMutate applies ops in order.
	// Atomic backends report failure as a whole-batch error.
	// Non-atomic backends report per-op failures in MutateResult.Errs.
	BatchMutate(ctx context.Context, ops []Op) (MutateResult, error)

	// ListAll returns every task, including soft-deleted ones.
	ListAll(ctx context.Context) ([]Record, error)
}

var (
	// ErrUnknownTask is returned when an op targets a missing or deleted task.
	ErrUnknownTask = errors.New("unknown task")

	// ErrEmptyBatch is returned when a batch call carries no entries.
	ErrEmptyBatch = errors.New("empty batch")
)

// RemoteID is an identifier assigned by the ledger. It is opaque to clients.
type RemoteID string

// Record is the ledger's view of one task.
type Record struct {
	ID        RemoteID
	Content   string
	Completed bool
	Deleted   bool
}

// Created is the result of creating one task.
type Created struct {
	ID      RemoteID
	Content string
}

// OpKind is the kind of a mutation.
type OpKind int

const (
	OpToggle OpKind = iota + 1
	OpDelete
)

func (k OpKind) String() string {
	switch k {
	case OpToggle:
		return "toggle"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is a single mutation addressed by authoritative id.
type Op struct {
	Kind OpKind
	ID   RemoteID
}

func (o Op) String() string {
	return fmt.Sprintf("%s(%s)", o.Kind, o.ID)
}

// MutateResult carries per-op outcomes of a non-atomic batch.
// Errs is either empty (every op applied) or has one entry per op.
type MutateResult struct {
	Errs []error
}

// Failed returns the indexes of ops that failed.
func (r MutateResult) Failed() []int {
	var idx []int
	for i, err := range r.Errs {
		if err != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// Live filters out soft-deleted records, preserving order.
func Live(records []Record) []Record {
	live := make([]Record, 0, len(records))
	for _, r := range records {
		if !r.Deleted {
			live = append(live, r)
		}
	}
	return live
}
