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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
// The command table is built from Registry, or DefaultRegistry when nil.
type HelpCmd struct {
	Registry *Registry
}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "todosync help [command]" }
func (c *HelpCmd) NeedsState() bool  { return false }
func (c *HelpCmd) NeedsLedger() bool { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, args []string, out, errOut io.Writer) int {
	registry := c.Registry
	if registry == nil {
		registry = DefaultRegistry
	}

	if len(args) > 0 {
		cmd, ok := registry.Find(args[0])
		if !ok {
			fmt.Fprintf(errOut, "error: unknown command: %s\n", args[0])
			return exitcode.UserError
		}
		fmt.Fprintf(out, "Usage: %s\n\n%s\n", cmd.Usage(), cmd.Synopsis())
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			fmt.Fprintf(out, "Aliases: %s\n", strings.Join(aliases, ", "))
		}
		return exitcode.Success
	}

	fmt.Fprintln(out, "Usage:")
	fmt.Fprintf(out, "  %-34s %s\n", config.AppName, "List tasks")
	for _, cmd := range registry.All() {
		synopsis := cmd.Synopsis()
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			synopsis += " (alias: " + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintf(out, "  %-34s %s\n", cmd.Usage(), synopsis)
	}
	fmt.Fprint(out, helpFooter)
	return exitcode.Success
}

const helpFooter = `
Task references:
  <n>     position in the list
  ~<n>    temporary id of an unsynced task
  #<id>   ledger id

Common flags:
  --config <dir>      Override config directory
  --backend <name>    Ledger backend: sqlite, redis, googletasks
  --quiet             Suppress informational output
  --debug             Print debug logs to stderr
`
