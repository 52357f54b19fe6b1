// Package main is the entry point for the todosync CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"todosync/internal/cli"
	"todosync/internal/commands"
)

func main() {
	// Cancel in-flight ledger calls on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	// A nil factory opens the backend named in the settings
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, nil)

	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
