package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/workspace"
)

func init() {
	Register(&PullCmd{})
}

// PullCmd implements the pull command.
// Pending changes are kept and re-applied on top of the fetched list.
type PullCmd struct{}

func (c *PullCmd) Name() string      { return "pull" }
func (c *PullCmd) Aliases() []string { return nil }
func (c *PullCmd) Synopsis() string  { return "Reload tasks from the ledger" }
func (c *PullCmd) Usage() string     { return "todosync pull" }
func (c *PullCmd) NeedsState() bool  { return true }
func (c *PullCmd) NeedsLedger() bool { return true }

func (c *PullCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *PullCmd) Run(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, args []string, out, errOut io.Writer) int {
	if err := ws.Reconciler(cfg).Pull(ctx, ws.Store); err != nil {
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
