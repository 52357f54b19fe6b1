package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/workspace"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
// The task is added locally and reaches the ledger on the next sync.
type AddCmd struct{}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Add a task" }
func (c *AddCmd) Usage() string     { return "todosync add <content...>" }
func (c *AddCmd) NeedsState() bool  { return true }
func (c *AddCmd) NeedsLedger() bool { return false }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *AddCmd) Run(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, args []string, out, errOut io.Writer) int {
	content := strings.Join(args, " ")
	id, ok := ws.Store.AddLocal(content)
	if !ok {
		fmt.Fprintln(errOut, "error: content required")
		return exitcode.UserError
	}

	ws.Logger.Debug("task added", "id", id.String())
	if !cfg.Quiet {
		fmt.Fprintf(out, "added %s\n", id)
	}
	return exitcode.Success
}
