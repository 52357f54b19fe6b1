package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/output"
	"todosync/internal/workspace"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `todosync` (no args) and `todosync list`.
// The list shown is the local view: pending edits are already applied.
type ListCmd struct {
	open bool
}

// SetOpenOnly hides completed tasks (for testing).
func (c *ListCmd) SetOpenOnly(open bool) {
	c.open = open
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string     { return "todosync list [--open]" }
func (c *ListCmd) NeedsState() bool  { return true }
func (c *ListCmd) NeedsLedger() bool { return false }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.open, "open", false, "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	// Numbers follow the full list so refs stay stable with --open
	tasks := ws.Store.Tasks()
	shown := 0
	for i, task := range tasks {
		if c.open && task.Completed {
			continue
		}
		output.FormatTask(out, i+1, task)
		shown++
	}

	if shown == 0 && !cfg.Quiet {
		fmt.Fprintln(out, "no tasks found")
	}

	if n := len(ws.Store.Pending()); n > 0 && !cfg.Quiet {
		fmt.Fprintf(errOut, "%d pending %s (run: todosync sync)\n", n, plural(n, "change", "changes"))
	}
	return exitcode.Success
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
