package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/output"
	"todosync/internal/todo"
	"todosync/internal/workspace"
)

func init() {
	Register(&SyncCmd{})
}

// SyncCmd implements the sync command: one flush of the pending queue.
// Changes that fail are not retried; they are listed and the command fails.
type SyncCmd struct{}

func (c *SyncCmd) Name() string      { return "sync" }
func (c *SyncCmd) Aliases() []string { return []string{"push"} }
func (c *SyncCmd) Synopsis() string  { return "Send pending changes to the ledger" }
func (c *SyncCmd) Usage() string     { return "todosync sync" }
func (c *SyncCmd) NeedsState() bool  { return true }
func (c *SyncCmd) NeedsLedger() bool { return true }

func (c *SyncCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *SyncCmd) Run(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, args []string, out, errOut io.Writer) int {
	rep, err := ws.Reconciler(cfg).Flush(ctx, ws.Store)
	if errors.Is(err, todo.ErrFlushInProgress) {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if rep.Empty() {
		if !cfg.Quiet {
			fmt.Fprintln(out, "nothing to sync")
		}
		return exitcode.Success
	}

	if err != nil || !cfg.Quiet {
		output.FormatReport(out, rep)
	}
	if err != nil {
		fmt.Fprintf(errOut, "error: sync failed: %v\n", err)
		return exitcode.BackendError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
