package todo

import "fmt"

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

// Snapshot is the persistent form of a Store.
type Snapshot struct {
	Version     int      `json:"version"`
	LastLocalID LocalID  `json:"last_local_id"`
	Tasks       []Task   `json:"tasks"`
	Pending     []Change `json:"pending"`
}

// Snapshot captures the store's list, queue and id counter.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Version:     SnapshotVersion,
		LastLocalID: s.lastLocal,
		Tasks:       make([]Task, len(s.tasks)),
		Pending:     make([]Change, len(s.queue)),
	}
	copy(snap.Tasks, s.tasks)
	copy(snap.Pending, s.queue)
	return snap
}

// Restore replaces the store's contents with snap after checking it for consistency.
func (s *Store) Restore(snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flushing {
		return ErrFlushInProgress
	}
	s.tasks = make([]Task, len(snap.Tasks))
	copy(s.tasks, snap.Tasks)
	s.queue = make([]Change, len(snap.Pending))
	copy(s.queue, snap.Pending)
	s.lastLocal = snap.LastLocalID
	return nil
}

// Validate checks a snapshot for the invariants the store relies on.
func (snap Snapshot) Validate() error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	checkLocal := func(id ID) error {
		if l, ok := id.Local(); ok && l > snap.LastLocalID {
			return fmt.Errorf("local id %s is ahead of counter %d", id, snap.LastLocalID)
		}
		return nil
	}

	seen := make(map[ID]bool, len(snap.Tasks))
	for i, t := range snap.Tasks {
		if t.ID.IsZero() {
			return fmt.Errorf("task %d has no id", i)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate task id %s", t.ID)
		}
		seen[t.ID] = true
		if err := checkLocal(t.ID); err != nil {
			return err
		}
	}

	added := make(map[LocalID]bool)
	for i, c := range snap.Pending {
		if err := c.validate(); err != nil {
			return fmt.Errorf("pending change %d: %w", i, err)
		}
		if c.Kind == ChangeAdd {
			if added[c.LocalID] {
				return fmt.Errorf("pending change %d: duplicate add for %s", i, Local(c.LocalID))
			}
			added[c.LocalID] = true
			if err := checkLocal(Local(c.LocalID)); err != nil {
				return err
			}
			continue
		}
		if err := checkLocal(c.Target); err != nil {
			return err
		}
	}
	return nil
}
