// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"todosync/internal/ledger"
)

// FakeLedger is an in-memory implementation of ledger.Ledger for testing.
// It records every call and supports error injection.
type FakeLedger struct {
	mu      sync.Mutex
	nextID  int
	records []ledger.Record

	// Recorded calls, in order.
	CreateCalls [][]string
	MutateCalls [][]ledger.Op
	ListCalls   int

	// Error injection for testing
	CreateErr error
	MutateErr error
	ListErr   error

	// CreateResult overrides the records BatchCreate returns. Whatever it returns
	// is stored, so ListAll reflects it.
	CreateResult func(contents []string, firstID int) []ledger.Created

	// OpErrs switches BatchMutate to per-op reporting. Ops whose id has an entry
	// fail with that error; the rest are applied.
	OpErrs map[ledger.RemoteID]error
}

// NewFakeLedger creates an empty FakeLedger whose first id is 1.
func NewFakeLedger() *FakeLedger {
	return &FakeLedger{nextID: 1}
}

// SetNextID sets the id the next created task receives.
func (f *FakeLedger) SetNextID(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID = n
}

// Seed adds a record directly.
func (f *FakeLedger) Seed(id, content string, completed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, ledger.Record{ID: ledger.RemoteID(id), Content: content, Completed: completed})
	if n, err := strconv.Atoi(id); err == nil && n >= f.nextID {
		f.nextID = n + 1
	}
}

// Records returns a copy of every record, deleted ones included.
func (f *FakeLedger) Records() []ledger.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ledger.Record, len(f.records))
	copy(out, f.records)
	return out
}

// BatchCreate implements ledger.Ledger.
func (f *FakeLedger) BatchCreate(ctx context.Context, contents []string) ([]ledger.Created, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.CreateCalls = append(f.CreateCalls, append([]string(nil), contents...))

	if f.CreateResult != nil {
		created := f.CreateResult(contents, f.nextID)
		for _, c := range created {
			f.records = append(f.records, ledger.Record{ID: c.ID, Content: c.Content})
			f.nextID++
		}
		return created, f.CreateErr
	}
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	created := make([]ledger.Created, len(contents))
	for i, c := range contents {
		id := ledger.RemoteID(strconv.Itoa(f.nextID))
		f.nextID++
		f.records = append(f.records, ledger.Record{ID: id, Content: c})
		created[i] = ledger.Created{ID: id, Content: c}
	}
	return created, nil
}

// BatchMutate implements ledger.Ledger.
// Without OpErrs the batch is atomic: one bad op rejects all of them.
func (f *FakeLedger) BatchMutate(ctx context.Context, ops []ledger.Op) (ledger.MutateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MutateCalls = append(f.MutateCalls, append([]ledger.Op(nil), ops...))

	if f.MutateErr != nil {
		return ledger.MutateResult{}, f.MutateErr
	}

	if f.OpErrs != nil {
		errs := make([]error, len(ops))
		for i, op := range ops {
			if err, ok := f.OpErrs[op.ID]; ok {
				errs[i] = err
				continue
			}
			errs[i] = f.apply(f.records, i, op)
		}
		return ledger.MutateResult{Errs: errs}, nil
	}

	next := make([]ledger.Record, len(f.records))
	copy(next, f.records)
	for i, op := range ops {
		if err := f.apply(next, i, op); err != nil {
			return ledger.MutateResult{}, err
		}
	}
	f.records = next
	return ledger.MutateResult{}, nil
}

func (f *FakeLedger) apply(records []ledger.Record, i int, op ledger.Op) error {
	for j := range records {
		r := &records[j]
		if r.ID != op.ID || r.Deleted {
			continue
		}
		switch op.Kind {
		case ledger.OpToggle:
			r.Completed = !r.Completed
		case ledger.OpDelete:
			r.Deleted = true
		}
		return nil
	}
	return fmt.Errorf("op %d %s: %w", i, op, ledger.ErrUnknownTask)
}

// ListAll implements ledger.Ledger.
func (f *FakeLedger) ListAll(ctx context.Context) ([]ledger.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	out := make([]ledger.Record, len(f.records))
	copy(out, f.records)
	return out, nil
}

// Calls returns the total number of remote calls made.
func (f *FakeLedger) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.CreateCalls) + len(f.MutateCalls) + f.ListCalls
}
