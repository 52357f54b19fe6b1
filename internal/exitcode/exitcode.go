// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, task not found).
	UserError = 1

	// AuthError indicates an auth/config error, including an unreadable state file.
	AuthError = 2

	// BackendError indicates a ledger/sync error.
	BackendError = 3
)
