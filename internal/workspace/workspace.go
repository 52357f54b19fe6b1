// Package workspace ties a command invocation to its persisted store and ledger.
package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"todosync/internal/config"
	"todosync/internal/ledger"
	"todosync/internal/ledger/backends"
	"todosync/internal/logging"
	"todosync/internal/reconcile"
	"todosync/internal/statefile"
	"todosync/internal/todo"
)

// ErrLocked is returned by Load while another process holds the state file.
var ErrLocked = errors.New("state is in use by another todosync process")

// Workspace is the state a command works on.
// Ledger is nil for commands that stay local.
type Workspace struct {
	Store  *todo.Store
	Ledger ledger.Ledger
	Logger *slog.Logger

	path string
	lock *flock.Flock
}

// LockPath returns the lock file guarding the state file at path.
func LockPath(path string) string {
	return path + ".lock"
}

// Load takes the state file lock and restores the store from the state file at path.
// The lock is held until Close, so a second Load of the same path fails with ErrLocked.
func Load(path string, logger *slog.Logger) (*Workspace, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	lock := flock.New(LockPath(path))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock state: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (%s)", ErrLocked, lock.Path())
	}

	snap, err := statefile.Load(path)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	store := todo.NewStore()
	if err := store.Restore(snap); err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("restore state: %w", err)
	}
	logger.Debug("state loaded", "path", path, "tasks", len(snap.Tasks), "pending", len(snap.Pending))
	return &Workspace{Store: store, Logger: logger, path: path, lock: lock}, nil
}

// Save writes the store back to the state file.
func (w *Workspace) Save() error {
	if err := statefile.Save(w.path, w.Store.Snapshot()); err != nil {
		return err
	}
	w.Logger.Debug("state saved", "path", w.path)
	return nil
}

// Reconciler returns a reconciler for the workspace ledger.
func (w *Workspace) Reconciler(cfg *config.Config) *reconcile.Reconciler {
	return reconcile.New(w.Ledger,
		reconcile.WithLogger(w.Logger),
		reconcile.WithCallTimeout(cfg.Settings.CallTimeout.Duration),
	)
}

// Close releases the ledger and the state file lock.
func (w *Workspace) Close() error {
	var errs []error
	if w.Ledger != nil {
		errs = append(errs, backends.Close(w.Ledger))
	}
	if w.lock != nil {
		errs = append(errs, w.lock.Unlock())
	}
	return errors.Join(errs...)
}
