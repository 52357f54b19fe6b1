package reconcile

import (
	"errors"

	"todosync/internal/ledger"
	"todosync/internal/todo"
)

// Creation records one temporary id that received a ledger id.
type Creation struct {
	Local   todo.LocalID
	Remote  ledger.RemoteID
	Content string
}

// FailedOp is a submitted op the ledger rejected individually.
type FailedOp struct {
	Op  ledger.Op
	Err error
}

// Report summarizes one flush.
// Consumed changes are gone from the queue whatever the outcome; the report is
// the only record of what was lost.
type Report struct {
	FlushID  string
	Consumed int

	Adds      []todo.Change
	Created   []Creation
	Submitted []ledger.Op
	Dropped   []todo.Change
	Failed    []FailedOp
	Reloaded  bool

	CreateErr error
	MutateErr error
	ReloadErr error
}

// Empty reports whether the flush had nothing to do.
func (r *Report) Empty() bool {
	return r.Consumed == 0
}

// OK reports whether every phase succeeded.
// Dropped changes do not count as failures.
func (r *Report) OK() bool {
	return r.Err() == nil && len(r.Failed) == 0
}

// Err joins the phase errors.
func (r *Report) Err() error {
	return errors.Join(r.CreateErr, r.MutateErr, r.ReloadErr)
}

// Uncreated returns the Adds that did not receive a ledger id.
func (r *Report) Uncreated() []todo.Change {
	created := make(map[todo.LocalID]bool, len(r.Created))
	for _, c := range r.Created {
		created[c.Local] = true
	}
	var out []todo.Change
	for _, a := range r.Adds {
		if !created[a.LocalID] {
			out = append(out, a)
		}
	}
	return out
}
