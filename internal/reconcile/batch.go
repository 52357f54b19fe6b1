package reconcile

import (
	"fmt"

	"todosync/internal/ledger"
	"todosync/internal/todo"
)

// Partitioned is a queue split by change kind, each side in queue order.
type Partitioned struct {
	Adds      []todo.Change
	Mutations []todo.Change
}

// Partition splits changes into Adds and Toggle/Delete changes.
// The split is stable: relative order inside each side is preserved.
func Partition(changes []todo.Change) Partitioned {
	var p Partitioned
	for _, c := range changes {
		if c.Kind == todo.ChangeAdd {
			p.Adds = append(p.Adds, c)
		} else {
			p.Mutations = append(p.Mutations, c)
		}
	}
	return p
}

// CreationBatchResult is the outcome of phase one.
type CreationBatchResult struct {
	Submitted []todo.Change
	Created   []ledger.Created
	Mapping   todo.IDMap
	Err       error
}

// BuildMapping pairs the Nth submitted Add with the Nth created record.
//
// Every position is checked against the submitted content. A mismatch means the
// ledger did not keep submission order, so nothing is mapped and ErrCreationOrder
// is returned. The same id returned twice also maps nothing and returns
// ErrCreationOrder. A short result maps the checked prefix and returns ErrCreationCount.
func BuildMapping(adds []todo.Change, created []ledger.Created) (todo.IDMap, error) {
	if len(created) > len(adds) {
		return todo.IDMap{}, fmt.Errorf("%w: ledger returned %d records for %d adds", ErrCreationCount, len(created), len(adds))
	}

	m := make(todo.IDMap, len(created))
	seen := make(map[ledger.RemoteID]int, len(created))
	for i, c := range created {
		add := adds[i]
		if c.ID == "" {
			return todo.IDMap{}, fmt.Errorf("%w: position %d has no id", ErrCreationOrder, i)
		}
		if c.Content != add.Content {
			return todo.IDMap{}, fmt.Errorf("%w: position %d: submitted %q, got %q", ErrCreationOrder, i, add.Content, c.Content)
		}
		if j, dup := seen[c.ID]; dup {
			return todo.IDMap{}, fmt.Errorf("%w: positions %d and %d share id %s", ErrCreationOrder, j, i, c.ID)
		}
		seen[c.ID] = i
		m[add.LocalID] = c.ID
	}

	if len(created) < len(adds) {
		return m, fmt.Errorf("%w: %d of %d created", ErrCreationCount, len(created), len(adds))
	}
	return m, nil
}

// ResolveMutations translates Toggle/Delete changes into ledger ops.
// Remote targets pass through; local targets resolve through m or are dropped.
func ResolveMutations(changes []todo.Change, m todo.IDMap) (ops []ledger.Op, dropped []todo.Change) {
	for _, c := range changes {
		id, ok := m.Resolve(c.Target)
		if !ok {
			dropped = append(dropped, c)
			continue
		}
		ops = append(ops, ledger.Op{Kind: opKind(c.Kind), ID: id})
	}
	return ops, dropped
}

func opKind(k todo.ChangeKind) ledger.OpKind {
	if k == todo.ChangeDelete {
		return ledger.OpDelete
	}
	return ledger.OpToggle
}
