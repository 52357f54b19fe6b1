package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/todo"
	"todosync/internal/workspace"
)

func init() {
	Register(&ToggleCmd{})
}

// ToggleCmd implements the toggle command.
type ToggleCmd struct{}

func (c *ToggleCmd) Name() string      { return "toggle" }
func (c *ToggleCmd) Aliases() []string { return []string{"done"} }
func (c *ToggleCmd) Synopsis() string  { return "Flip a task between open and completed" }
func (c *ToggleCmd) Usage() string     { return "todosync toggle <ref...>" }
func (c *ToggleCmd) NeedsState() bool  { return true }
func (c *ToggleCmd) NeedsLedger() bool { return false }

func (c *ToggleCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ToggleCmd) Run(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, args []string, out, errOut io.Writer) int {
	tasks, code := resolveRefs(ws.Store, args, errOut)
	if code != exitcode.Success {
		return code
	}

	for _, task := range tasks {
		if !ws.Store.ToggleLocal(task.ID) {
			fmt.Fprintf(errOut, "error: task not found: %s\n", task.ID)
			return exitcode.UserError
		}
	}

	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// resolveRefs parses args and resolves every reference before anything is edited,
// so positions refer to the list as printed.
func resolveRefs(store *todo.Store, args []string, errOut io.Writer) ([]todo.Task, int) {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		if err == ErrTaskRefRequired {
			fmt.Fprintln(errOut, "error: task reference required")
		} else {
			fmt.Fprintf(errOut, "error: %v\n", err)
		}
		return nil, exitcode.UserError
	}

	seen := make(map[todo.ID]bool, len(refs))
	tasks := make([]todo.Task, 0, len(refs))
	for _, ref := range refs {
		task, err := findTask(store, ref)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return nil, exitcode.UserError
		}
		if seen[task.ID] {
			fmt.Fprintf(errOut, "error: duplicate task reference: %s\n", task.ID)
			return nil, exitcode.UserError
		}
		seen[task.ID] = true
		tasks = append(tasks, task)
	}
	return tasks, exitcode.Success
}
