package cli_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"todosync/internal/cli"
	"todosync/internal/commands"
	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/ledger"
	"todosync/internal/ledger/backends"
	"todosync/internal/testutil"
)

// testFactory creates a ledger factory that returns the given FakeLedger.
func testFactory(l *testutil.FakeLedger) cli.LedgerFactory {
	return func(ctx context.Context, cfg *config.Config) (ledger.Ledger, error) {
		return l, nil
	}
}

// run dispatches args against a config dir and returns the captured output.
func run(t *testing.T, d *cli.Dispatcher, dir string, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	if dir != "" {
		args = append(args, "--config", dir)
	}
	var outBuf, errBuf bytes.Buffer
	code = d.Run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeLedger()))

	_, stderr, code := run(t, dispatcher, "", "unknowncmd")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeLedger()))

	_, stderr, code := run(t, dispatcher, "", "--quiet")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeLedger()))

	stdout, stderr, code := run(t, dispatcher, t.TempDir(), "help")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Error("expected help output to contain 'Usage:'")
	}
}

func TestDispatcher_VersionCommand(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeLedger()))

	stdout, stderr, code := run(t, dispatcher, t.TempDir(), "version")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "todosync 0.1.0\n" {
		t.Errorf("expected 'todosync 0.1.0\\n', got %q", stdout)
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeLedger()))

	_, stderr, code := run(t, dispatcher, "", "help", "--unknown")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown flag: -unknown\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagNeedsArgument(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeLedger()))

	_, stderr, code := run(t, dispatcher, "", "list", "--config")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: flag needs an argument: -config\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_NoArgsListsTasks(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeLedger()))

	if _, stderr, code := run(t, dispatcher, filepath.Join(xdg, config.AppName), "add", "Buy", "milk"); code != exitcode.Success {
		t.Fatalf("add failed with %d: %s", code, stderr)
	}

	stdout, stderr, code := run(t, dispatcher, "")
	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "   1  [ ] Buy milk *\n" {
		t.Errorf("expected task list, got %q", stdout)
	}
	if stderr != "1 pending change (run: todosync sync)\n" {
		t.Errorf("expected pending hint, got %q", stderr)
	}
}

func TestDispatcher_StatePersistsBetweenRuns(t *testing.T) {
	dir := t.TempDir()
	fake := testutil.NewFakeLedger()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(fake))

	for _, content := range []string{"Buy milk", "Buy eggs"} {
		if _, stderr, code := run(t, dispatcher, dir, "add", content); code != exitcode.Success {
			t.Fatalf("add %q failed with %d: %s", content, code, stderr)
		}
	}

	stdout, stderr, code := run(t, dispatcher, dir, "list")
	if code != exitcode.Success {
		t.Fatalf("list failed with %d: %s", code, stderr)
	}
	expected := "   1  [ ] Buy milk *\n   2  [ ] Buy eggs *\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
	if stderr != "2 pending changes (run: todosync sync)\n" {
		t.Errorf("expected pending hint, got %q", stderr)
	}

	if fake.Calls() != 0 {
		t.Errorf("local commands must not reach the ledger, got %d calls", fake.Calls())
	}
}

func TestDispatcher_SyncFlushesQueue(t *testing.T) {
	dir := t.TempDir()
	fake := testutil.NewFakeLedger()
	fake.Seed("1", "Existing", false)
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(fake))

	if _, stderr, code := run(t, dispatcher, dir, "pull"); code != exitcode.Success {
		t.Fatalf("pull failed with %d: %s", code, stderr)
	}
	if _, stderr, code := run(t, dispatcher, dir, "add", "New task"); code != exitcode.Success {
		t.Fatalf("add failed with %d: %s", code, stderr)
	}
	// Toggle the unsynced task by position; the sync resolves it.
	if _, stderr, code := run(t, dispatcher, dir, "toggle", "2"); code != exitcode.Success {
		t.Fatalf("toggle failed with %d: %s", code, stderr)
	}

	stdout, stderr, code := run(t, dispatcher, dir, "sync")
	if code != exitcode.Success {
		t.Fatalf("sync failed with %d: %s", code, stderr)
	}
	expected := "created 1, submitted 1, dropped 0\nok\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}

	if len(fake.MutateCalls) != 1 || fake.MutateCalls[0][0] != (ledger.Op{Kind: ledger.OpToggle, ID: "2"}) {
		t.Errorf("expected toggle of the created task, got %v", fake.MutateCalls)
	}

	stdout, _, _ = run(t, dispatcher, dir, "list")
	expected = "   1  [ ] Existing\n   2  [x] New task\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}

	stdout, _, _ = run(t, dispatcher, dir, "sync")
	if stdout != "nothing to sync\n" {
		t.Errorf("expected nothing to sync, got %q", stdout)
	}
}

func TestDispatcher_SyncFailureStillClearsQueue(t *testing.T) {
	dir := t.TempDir()
	fake := testutil.NewFakeLedger()
	fake.CreateErr = errors.New("quota exceeded")
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(fake))

	run(t, dispatcher, dir, "add", "Lost task")

	stdout, stderr, code := run(t, dispatcher, dir, "sync")
	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if !strings.Contains(stdout, "lost: add(~1, \"Lost task\")") {
		t.Errorf("expected lost task in report, got %q", stdout)
	}
	if !strings.Contains(stderr, "error: sync failed: create batch failed: quota exceeded") {
		t.Errorf("expected sync error, got %q", stderr)
	}

	stdout, stderr, _ = run(t, dispatcher, dir, "status")
	if strings.Contains(stdout, "pending") {
		t.Errorf("expected empty queue after failed sync, got %q", stdout)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
}

func TestDispatcher_LedgerNotOpenedForLocalCommands(t *testing.T) {
	opened := false
	factory := func(ctx context.Context, cfg *config.Config) (ledger.Ledger, error) {
		opened = true
		return nil, errors.New("should not be called")
	}
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)
	dir := t.TempDir()

	for _, args := range [][]string{{"add", "x"}, {"list"}, {"status"}, {"toggle", "1"}, {"rm", "1"}} {
		if _, stderr, code := run(t, dispatcher, dir, args...); code != exitcode.Success {
			t.Errorf("%v failed with %d: %s", args, code, stderr)
		}
	}
	if opened {
		t.Error("ledger was opened by a local command")
	}
}

func TestDispatcher_AuthError(t *testing.T) {
	factory := func(ctx context.Context, cfg *config.Config) (ledger.Ledger, error) {
		return nil, fmt.Errorf("%w: not logged in (run: todosync login)", backends.ErrNotAuthenticated)
	}
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	_, stderr, code := run(t, dispatcher, t.TempDir(), "sync")

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	expected := "error: auth error: not authenticated: not logged in (run: todosync login)\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_BackendError(t *testing.T) {
	factory := func(ctx context.Context, cfg *config.Config) (ledger.Ledger, error) {
		return nil, errors.New("connection refused")
	}
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	_, stderr, code := run(t, dispatcher, t.TempDir(), "pull")

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	expected := "error: backend error: connection refused\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_BackendFlagOverridesSettings(t *testing.T) {
	var backend string
	factory := func(ctx context.Context, cfg *config.Config) (ledger.Ledger, error) {
		backend = cfg.Settings.Backend
		return testutil.NewFakeLedger(), nil
	}
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, factory)

	_, stderr, code := run(t, dispatcher, t.TempDir(), "pull", "--backend", "redis")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d: %s", exitcode.Success, code, stderr)
	}
	if backend != config.BackendRedis {
		t.Errorf("expected backend %q, got %q", config.BackendRedis, backend)
	}
}

func TestDispatcher_InvalidBackendFlag(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeLedger()))

	_, stderr, code := run(t, dispatcher, t.TempDir(), "status", "--backend", "postgres")

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	expected := "error: unknown backend: postgres\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_ConcurrentRunIsLockedOut(t *testing.T) {
	dir := t.TempDir()
	fake := testutil.NewFakeLedger()
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(fake))

	if _, stderr, code := run(t, dispatcher, dir, "add", "Buy milk"); code != exitcode.Success {
		t.Fatalf("add failed with %d: %s", code, stderr)
	}

	// Other invocations start while the sync holds the state file.
	var nested []string
	var nestedCodes []int
	syncing := cli.NewDispatcher(commands.DefaultRegistry, func(ctx context.Context, cfg *config.Config) (ledger.Ledger, error) {
		for _, args := range [][]string{{"sync"}, {"add", "Buy eggs"}} {
			_, stderr, code := run(t, dispatcher, dir, args...)
			nested = append(nested, stderr)
			nestedCodes = append(nestedCodes, code)
		}
		return fake, nil
	})

	if _, stderr, code := run(t, syncing, dir, "sync"); code != exitcode.Success {
		t.Fatalf("sync failed with %d: %s", code, stderr)
	}
	for i, code := range nestedCodes {
		if code != exitcode.UserError {
			t.Errorf("nested run %d: expected exit code %d, got %d", i, exitcode.UserError, code)
		}
		if !strings.Contains(nested[i], "state is in use by another todosync process") {
			t.Errorf("nested run %d: expected lock error, got %q", i, nested[i])
		}
	}
	if len(fake.CreateCalls) != 1 {
		t.Errorf("expected the queue to be flushed once, got %d create calls", len(fake.CreateCalls))
	}

	stdout, stderr, code := run(t, dispatcher, dir, "list")
	if code != exitcode.Success {
		t.Fatalf("list failed with %d: %s", code, stderr)
	}
	if stdout != "   1  [ ] Buy milk\n" {
		t.Errorf("unexpected list after sync: %q", stdout)
	}
}

func TestDispatcher_MemoryBackendRejected(t *testing.T) {
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeLedger()))

	_, stderr, code := run(t, dispatcher, t.TempDir(), "sync", "--backend", "memory")

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	expected := "error: unknown backend: memory\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_CorruptStateFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.StateFile), []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, testFactory(testutil.NewFakeLedger()))

	_, stderr, code := run(t, dispatcher, dir, "list")

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if !strings.HasPrefix(stderr, "error: parse state file:") {
		t.Errorf("expected parse error, got %q", stderr)
	}
}
