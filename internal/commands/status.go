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
	Register(&StatusCmd{})
}

// StatusCmd implements the status command.
type StatusCmd struct{}

func (c *StatusCmd) Name() string      { return "status" }
func (c *StatusCmd) Aliases() []string { return nil }
func (c *StatusCmd) Synopsis() string  { return "Show pending changes" }
func (c *StatusCmd) Usage() string     { return "todosync status" }
func (c *StatusCmd) NeedsState() bool  { return true }
func (c *StatusCmd) NeedsLedger() bool { return false }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, args []string, out, errOut io.Writer) int {
	pending := ws.Store.Pending()

	fmt.Fprintf(out, "backend: %s\n", cfg.Settings.Backend)
	fmt.Fprintf(out, "state: %s\n", ws.Store.State())
	if len(pending) == 0 {
		return exitcode.Success
	}

	output.FormatHeader(out, fmt.Sprintf("pending (%d)", len(pending)))
	for i, change := range pending {
		output.FormatChange(out, i+1, change)
	}
	return exitcode.Success
}
