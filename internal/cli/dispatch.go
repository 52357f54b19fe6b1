package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"todosync/internal/commands"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/ledger"
	"todosync/internal/ledger/backends"
	"todosync/internal/logging"
	"todosync/internal/workspace"
)

// LedgerFactory creates a Ledger from config.
// Used to inject the backend during dispatch.
type LedgerFactory func(ctx context.Context, cfg *config.Config) (ledger.Ledger, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  LedgerFactory
}

// NewDispatcher creates a new dispatcher with the given registry and ledger factory.
// A nil factory opens the backend named in the settings.
func NewDispatcher(registry *commands.Registry, factory LedgerFactory) *Dispatcher {
	if factory == nil {
		factory = backends.Open
	}
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// If first token starts with -, it's an error (flags require a command)
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

type commonFlags struct {
	configDir string
	backend   string
	quiet     bool
	debug     bool
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	// Create flag set with custom error handling
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	var common commonFlags
	fs.StringVar(&common.configDir, "config", "", "")
	fs.StringVar(&common.backend, "backend", "", "")
	fs.BoolVar(&common.quiet, "quiet", false, "")
	fs.BoolVar(&common.debug, "debug", false, "")

	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", flagErrorMessage(err))
		return exitcode.UserError
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := newConfig(common)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.AuthError
	}

	logger := logging.New(errOut, logging.Options{
		Debug:  cfg.Debug,
		Format: cfg.Settings.LogFormat,
		Prefix: config.AppName,
	})

	if !cmd.NeedsState() && !cmd.NeedsLedger() {
		return cmd.Run(ctx, cfg, nil, positionalArgs, out, errOut)
	}

	ws, err := workspace.Load(cfg.StatePath(), logger)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		if errors.Is(err, workspace.ErrLocked) {
			return exitcode.UserError
		}
		return exitcode.AuthError
	}
	defer closeWorkspace(ws, logger)

	if cmd.NeedsLedger() {
		l, err := d.factory(ctx, cfg)
		if err != nil {
			if errors.Is(err, backends.ErrNotAuthenticated) {
				fmt.Fprintf(errOut, "error: auth error: %s\n", err)
				return exitcode.AuthError
			}
			fmt.Fprintf(errOut, "error: backend error: %s\n", err)
			return exitcode.BackendError
		}
		ws.Ledger = l
		logger.Debug("ledger opened", "backend", cfg.Settings.Backend)
	}

	code := cmd.Run(ctx, cfg, ws, positionalArgs, out, errOut)

	// Saved whatever the exit code: a failed sync has still consumed the queue.
	if err := ws.Save(); err != nil {
		fmt.Fprintf(errOut, "error: failed to save state: %s\n", err)
		if code == exitcode.Success {
			code = exitcode.AuthError
		}
	}
	return code
}

// newConfig loads settings and applies the common flags on top.
func newConfig(common commonFlags) (*config.Config, error) {
	cfg, err := config.New(common.configDir)
	if err != nil {
		return nil, err
	}
	cfg.Quiet = common.quiet
	cfg.Debug = common.debug
	if common.backend != "" {
		cfg.Settings.Backend = common.backend
		if err := cfg.Settings.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func closeWorkspace(ws *workspace.Workspace, logger *slog.Logger) {
	if err := ws.Close(); err != nil {
		logger.Warn("closing workspace", "err", err)
	}
}

// flagErrorMessage rewrites flag package errors into the CLI's wording.
func flagErrorMessage(err error) string {
	errStr := err.Error()

	// Missing flag value
	if strings.Contains(errStr, "needs a value") || strings.Contains(errStr, "flag needs an argument") {
		parts := strings.Split(errStr, ":")
		flagPart := strings.TrimSpace(parts[len(parts)-1])
		return "flag needs an argument: " + flagPart
	}

	// Unknown flag
	if strings.HasPrefix(errStr, "flag provided but not defined:") {
		return "unknown flag: " + strings.TrimPrefix(errStr, "flag provided but not defined: ")
	}

	return errStr
}
