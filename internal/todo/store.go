// Package todo holds the client-side task list and its pending-change queue.
//
// Edits are applied optimistically to the visible list and appended to the queue.
// The queue is consumed by a flush (see package reconcile), after which the list is
// reloaded from the ledger's authoritative view.
package todo

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"todosync/internal/ledger"
)

// ErrFlushInProgress is returned by BeginFlush while another flush is outstanding.
var ErrFlushInProgress = errors.New("flush already in progress")

// Task is one visible to-do item. Deleted tasks are never visible.
type Task struct {
	ID        ID     `json:"id"`
	Content   string `json:"content"`
	Completed bool   `json:"completed"`
}

// Synced reports whether the task is known to the ledger.
func (t Task) Synced() bool {
	_, ok := t.ID.Remote()
	return ok
}

// State is the state of the pending-change queue.
type State int

const (
	StateIdle State = iota
	StateDirty
	StateFlushing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateFlushing:
		return "flushing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Store is the Local State Store: the visible task list plus the pending-change queue.
type Store struct {
	mu        sync.Mutex
	tasks     []Task
	queue     []Change
	lastLocal LocalID
	flushing  bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// AddLocal appends a task with a fresh temporary id and queues an Add change.
// Content is trimmed; empty content is rejected without queueing anything.
func (s *Store) AddLocal(content string) (ID, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return ID{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local := s.allocLocal()
	id := Local(local)
	s.tasks = append(s.tasks, Task{ID: id, Content: content})
	s.queue = append(s.queue, AddChange(local, content))
	return id, true
}

// ToggleLocal flips Completed on the task with id and queues a Toggle change.
// Returns false if no visible task has id.
func (s *Store) ToggleLocal(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.tasks[i].Completed = !s.tasks[i].Completed
	s.queue = append(s.queue, ToggleChange(id))
	return true
}

// DeleteLocal removes the task with id from the visible list and queues a Delete change.
// Returns false if no visible task has id.
func (s *Store) DeleteLocal(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	s.queue = append(s.queue, DeleteChange(id))
	return true
}

// Reload replaces the visible list with the non-deleted authoritative records.
// The queue is left untouched.
func (s *Store) Reload(records []ledger.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload(records)
}

// Refresh reloads from records and re-applies the queued changes on top,
// so pending edits stay visible.
func (s *Store) Refresh(records []ledger.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reload(records)
	s.replayQueue()
}

// BeginFlush marks the store as flushing and returns a copy of the queue.
// An empty queue returns nil and leaves the state unchanged.
func (s *Store) BeginFlush() ([]Change, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flushing {
		return nil, ErrFlushInProgress
	}
	if len(s.queue) == 0 {
		return nil, nil
	}
	s.flushing = true
	out := make([]Change, len(s.queue))
	copy(out, s.queue)
	return out, nil
}

// FlushOutcome describes a finished flush to FinishFlush.
type FlushOutcome struct {
	// Consumed is the number of queued changes the flush took.
	Consumed int
	// Mapping holds the temporary ids resolved by the flush.
	Mapping IDMap
	// Records is the authoritative snapshot; used only if Reloaded.
	Records  []ledger.Record
	Reloaded bool
}

// FinishFlush drops the consumed changes from the queue and leaves the flushing state.
// Changes queued during the flush are kept, with targets rewritten through the
// mapping, and re-applied on top of the reloaded list. Without a reload the
// optimistic list stays, with created tasks renamed to their ledger ids.
func (s *Store) FinishFlush(out FlushOutcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	consumed := out.Consumed
	if consumed > len(s.queue) {
		consumed = len(s.queue)
	}
	taken := s.queue[:consumed]
	rest := make([]Change, 0, len(s.queue)-consumed)
	for _, c := range s.queue[consumed:] {
		if c.Kind != ChangeAdd {
			if r, ok := out.Mapping.Resolve(c.Target); ok {
				c.Target = Remote(r)
			}
		}
		rest = append(rest, c)
	}
	s.queue = rest
	s.flushing = false

	if out.Reloaded {
		s.reload(out.Records)
		s.replayQueue()
		return
	}
	s.settleAdds(taken, out.Mapping)
}

// settleAdds fixes up the optimistic list after a flush that could not reload.
// Tasks from consumed Adds take their ledger id when mapped; the rest are removed,
// since nothing queued will create them any more.
func (s *Store) settleAdds(taken []Change, m IDMap) {
	for _, c := range taken {
		if c.Kind != ChangeAdd {
			continue
		}
		i := s.indexOf(Local(c.LocalID))
		if i < 0 {
			continue
		}
		if r, ok := m[c.LocalID]; ok {
			s.tasks[i].ID = Remote(r)
			continue
		}
		s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
	}
}

// Tasks returns a copy of the visible list.
func (s *Store) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// Pending returns a copy of the queue.
func (s *Store) Pending() []Change {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Change, len(s.queue))
	copy(out, s.queue)
	return out
}

// Lookup returns the visible task with id.
func (s *Store) Lookup(id ID) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return Task{}, false
	}
	return s.tasks[i], true
}

// State returns the queue state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.flushing:
		return StateFlushing
	case len(s.queue) > 0:
		return StateDirty
	default:
		return StateIdle
	}
}

func (s *Store) reload(records []ledger.Record) {
	live := ledger.Live(records)
	s.tasks = make([]Task, len(live))
	for i, r := range live {
		s.tasks[i] = Task{ID: Remote(r.ID), Content: r.Content, Completed: r.Completed}
	}
}

// replayQueue applies queued changes to the visible list without re-queueing them.
func (s *Store) replayQueue() {
	for _, c := range s.queue {
		switch c.Kind {
		case ChangeAdd:
			if s.indexOf(Local(c.LocalID)) < 0 {
				s.tasks = append(s.tasks, Task{ID: Local(c.LocalID), Content: c.Content})
			}
		case ChangeToggle:
			if i := s.indexOf(c.Target); i >= 0 {
				s.tasks[i].Completed = !s.tasks[i].Completed
			}
		case ChangeDelete:
			if i := s.indexOf(c.Target); i >= 0 {
				s.tasks = append(s.tasks[:i:i], s.tasks[i+1:]...)
			}
		}
	}
}

func (s *Store) indexOf(id ID) int {
	if id.IsZero() {
		return -1
	}
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// allocLocal returns the next temporary id not referenced by the list or the queue.
func (s *Store) allocLocal() LocalID {
	for {
		s.lastLocal++
		if s.lastLocal == 0 {
			s.lastLocal = 1
		}
		if !s.localInUse(s.lastLocal) {
			return s.lastLocal
		}
	}
}

func (s *Store) localInUse(n LocalID) bool {
	id := Local(n)
	if s.indexOf(id) >= 0 {
		return true
	}
	for _, c := range s.queue {
		if c.LocalID == n || c.Target == id {
			return true
		}
	}
	return false
}
