package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskify/internal/app"
	"taskify/internal/cli"
	"taskify/internal/commands"
	"taskify/internal/config"
	"taskify/internal/exitcode"
	"taskify/internal/session"
	"taskify/internal/storage"
	"taskify/internal/testutil"
)

// testFactory creates an app factory that talks to the given fake backend.
func testFactory(b *testutil.FakeBackend) cli.AppFactory {
	return func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		cfg.BackendURL = b.URL
		return app.New(ctx, cfg, io.Discard)
	}
}

// setup isolates the config directory and returns a dispatcher on a fresh backend.
func setup(t *testing.T) (*cli.Dispatcher, *testutil.FakeBackend, string) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	b := testutil.NewFakeBackend(t)
	return cli.NewDispatcher(commands.DefaultRegistry, testFactory(b)), b, config.DefaultConfigDir()
}

// seedSession stores a signed-in user the way a previous run would have.
func seedSession(t *testing.T, b *testutil.FakeBackend, dir string) session.User {
	t.Helper()
	u := b.AddUser("Ada", "ada@example.com", "secret")
	data, err := json.Marshal(u)
	require.NoError(t, err)
	require.NoError(t, storage.NewFileKV(dir).Set(context.Background(), session.UserKey, string(data)))
	return u
}

func run(d *cli.Dispatcher, args ...string) (stdout, stderr string, code int) {
	var outBuf, errBuf bytes.Buffer
	code = d.Run(context.Background(), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _, _ := setup(t)

	_, stderr, code := run(d, "unknowncmd")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: unknowncmd\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_FlagBeforeCommand(t *testing.T) {
	d, _, _ := setup(t)

	_, stderr, code := run(d, "--quiet")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown command: --quiet\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_HelpCommand(t *testing.T) {
	d, _, _ := setup(t)

	stdout, stderr, code := run(d, "help")

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
	d, _, _ := setup(t)

	stdout, stderr, code := run(d, "version")

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "taskify 0.1.0\n" {
		t.Errorf("expected 'taskify 0.1.0\\n', got %q", stdout)
	}
}

func TestDispatcher_UnknownFlag(t *testing.T) {
	d, _, _ := setup(t)

	_, stderr, code := run(d, "version", "--unknown")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	expected := "error: unknown flag: --unknown\n"
	if stderr != expected {
		t.Errorf("expected %q, got %q", expected, stderr)
	}
}

func TestDispatcher_MissingFlagValue(t *testing.T) {
	d, _, _ := setup(t)

	_, stderr, code := run(d, "add", "--date")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.HasPrefix(stderr, "error: flag needs an argument") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_InvalidFormat(t *testing.T) {
	d, _, _ := setup(t)

	_, stderr, code := run(d, "version", "--format", "xml")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: unknown format: xml\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDispatcher_NoArgsNotLoggedIn(t *testing.T) {
	d, b, _ := setup(t)

	_, stderr, code := run(d)

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not logged in (run: taskify login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if n := b.Calls("POST /auth/refresh-token"); n != 0 {
		t.Errorf("expected no network call without credentials, got %d", n)
	}
}

func TestDispatcher_NoArgsListsTasks(t *testing.T) {
	d, b, dir := setup(t)
	seedSession(t, b, dir)
	b.AddTask("Buy milk", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	stdout, _, code := run(d)

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "   1  [ ] Buy milk  2024-06-01\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if n := b.Calls("POST /auth/refresh-token"); n != 1 {
		t.Errorf("expected the stored session to be refreshed once, got %d", n)
	}
}

func TestDispatcher_ConfigFlagAndAlias(t *testing.T) {
	d, b, _ := setup(t)
	dir := t.TempDir()
	seedSession(t, b, dir)
	b.AddTask("Buy milk", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	stdout, stderr, code := run(d, "ls", "--config", dir, "--quiet", "--format", "json")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (%s)", exitcode.Success, code, stderr)
	}
	var listing struct {
		Tasks []struct {
			Text string `json:"text"`
		} `json:"tasks"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(stdout), &listing); err != nil {
		t.Fatalf("invalid JSON %q: %v", stdout, err)
	}
	if listing.Total != 1 || len(listing.Tasks) != 1 || listing.Tasks[0].Text != "Buy milk" {
		t.Errorf("unexpected listing %+v", listing)
	}
}

func TestDispatcher_ExpiredSession(t *testing.T) {
	d, b, dir := setup(t)
	u := seedSession(t, b, dir)
	b.RevokeRefresh(u.RefreshToken)

	_, stderr, code := run(d, "list")

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: not logged in (run: taskify login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}

	// The logged-out marker means the next run makes no network call.
	run(d, "list")
	if n := b.Calls("POST /auth/refresh-token"); n != 1 {
		t.Errorf("expected a single refresh attempt, got %d", n)
	}
}

func TestDispatcher_BackendUnavailable(t *testing.T) {
	d, b, dir := setup(t)
	seedSession(t, b, dir)
	b.Close()

	_, stderr, code := run(d, "list")

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if !strings.HasPrefix(stderr, "error: backend unavailable: ") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}
