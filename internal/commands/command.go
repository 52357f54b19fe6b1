// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"io"

	"todosync/internal/config"
	"todosync/internal/workspace"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsState returns true if the command reads or edits the local task list.
	// The state file is loaded before Run and saved after it.
	NeedsState() bool

	// NeedsLedger returns true if the command talks to the ledger.
	// Implies NeedsState.
	NeedsLedger() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// cfg is always provided (config dir, paths, settings).
	// ws is nil if NeedsState() returns false; ws.Ledger is nil unless NeedsLedger().
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, cfg *config.Config, ws *workspace.Workspace, args []string, out, errOut io.Writer) int
}
