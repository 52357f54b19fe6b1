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
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"delete"} }
func (c *RmCmd) Synopsis() string  { return "Delete a task" }
func (c *RmCmd) Usage() string     { return "todosync rm <ref...>" }
func (c *RmCmd) NeedsState() bool  { return true }
func (c *RmCmd) NeedsLedger() bool { return false }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, args []string, out, errOut io.Writer) int {
	tasks, code := resolveRefs(ws.Store, args, errOut)
	if code != exitcode.Success {
		return code
	}

	for _, task := range tasks {
		if !ws.Store.DeleteLocal(task.ID) {
			fmt.Fprintf(errOut, "error: task not found: %s\n", task.ID)
			return exitcode.UserError
		}
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
