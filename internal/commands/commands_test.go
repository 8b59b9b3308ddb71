package commands_test

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"taskify/internal/app"
	"taskify/internal/commands"
	"taskify/internal/config"
	"taskify/internal/exitcode"
	"taskify/internal/session"
	"taskify/internal/testutil"
)

// testEnv is an App wired to a fake backend.
type testEnv struct {
	backend *testutil.FakeBackend
	app     *app.App
}

func newEnv(t *testing.T, quiet bool) *testEnv {
	t.Helper()
	b := testutil.NewFakeBackend(t)

	cfg, err := config.New(t.TempDir())
	require.NoError(t, err)
	cfg.BackendURL = b.URL
	cfg.Quiet = quiet
	cfg.SearchDebounce = time.Minute

	a, err := app.New(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return &testEnv{backend: b, app: a}
}

// login signs in a fresh account.
func (e *testEnv) login(t *testing.T) session.User {
	t.Helper()
	u := e.backend.AddUser("Ada", "ada@example.com", "secret")
	require.NoError(t, e.app.Sessions.Set(context.Background(), session.Authenticated(u)))
	return u
}

// seedTasks stores seven tasks, one day apart in this order.
func (e *testEnv) seedTasks() {
	day := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, text := range []string{"Buy milk", "Call mom", "Answer email", "Buy bread", "Fix bike", "Water plants", "Pay rent"} {
		e.backend.AddTask(text, day.AddDate(0, 0, i))
	}
}

// run parses args with the command's flags and runs it.
func (e *testEnv) run(t *testing.T, cmd commands.Command, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	fs := pflag.NewFlagSet(cmd.Name(), pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	var outBuf, errBuf bytes.Buffer
	code = cmd.Run(context.Background(), e.app, fs.Args(), &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func (e *testEnv) taskTexts() []string {
	var texts []string
	for _, task := range e.backend.Tasks() {
		texts = append(texts, task.Text)
	}
	return texts
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	e := newEnv(t, false)

	stdout, stderr, code := e.run(t, &commands.VersionCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	if stdout != "taskify 0.1.0\n" {
		t.Errorf("expected version output, got %q", stdout)
	}
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	e := newEnv(t, false)

	stdout, _, code := e.run(t, &commands.HelpCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "Usage:") {
		t.Error("help output should contain 'Usage:'")
	}
}

// Tests for list command
func TestListCommand_DefaultWindow(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.seedTasks()

	stdout, _, code := e.run(t, &commands.ListCmd{})

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "" +
		"   1  [ ] Answer email  2024-06-03\n" +
		"   2  [ ] Buy bread  2024-06-04\n" +
		"   3  [ ] Buy milk  2024-06-01\n" +
		"   4  [ ] Call mom  2024-06-02\n" +
		"   5  [ ] Fix bike  2024-06-05\n" +
		"(5 of 7, run with --more to see more)\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)

	stdout, _, code := e.run(t, &commands.ListCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "no tasks found\n" {
		t.Errorf("expected %q, got %q", "no tasks found\n", stdout)
	}
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	e := newEnv(t, true)
	e.login(t)

	stdout, stderr, code := e.run(t, &commands.ListCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	// Quiet mode should suppress "no tasks found" and the tour hint
	if stdout != "" || stderr != "" {
		t.Errorf("expected no output in quiet mode, got %q / %q", stdout, stderr)
	}
}

func TestListCommand_MoreIsRemembered(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.seedTasks()

	stdout, _, code := e.run(t, &commands.ListCmd{}, "--more")
	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if n := strings.Count(stdout, "\n"); n != 7 {
		t.Errorf("expected 7 rows and no footer, got %q", stdout)
	}

	// The next plain listing keeps the grown window.
	again, _, _ := e.run(t, &commands.ListCmd{})
	if again != stdout {
		t.Errorf("expected remembered window %q, got %q", stdout, again)
	}

	reset, _, _ := e.run(t, &commands.ListCmd{}, "--reset")
	if !strings.HasSuffix(reset, "(5 of 7, run with --more to see more)\n") {
		t.Errorf("expected reset window, got %q", reset)
	}
}

func TestListCommand_SearchSortOrder(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.seedTasks()

	stdout, _, code := e.run(t, &commands.ListCmd{}, "--search", "buy", "--sort", "date", "--order", "desc")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "   1  [ ] Buy bread  2024-06-04\n   2  [ ] Buy milk  2024-06-01\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
}

func TestListCommand_NoMatches(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.seedTasks()

	stdout, _, _ := e.run(t, &commands.ListCmd{}, "--search", "zebra")

	if stdout != "no tasks match \"zebra\"\n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestListCommand_InvalidFlags(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--sort", "name"}, "error: invalid sort: name (want text or date)\n"},
		{[]string{"--order", "up"}, "error: invalid order: up (want asc or desc)\n"},
		{[]string{"--limit", "0"}, "error: invalid limit: 0\n"},
		{[]string{"shopping"}, "error: unexpected argument: shopping\n"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			e := newEnv(t, false)
			e.login(t)

			_, stderr, code := e.run(t, &commands.ListCmd{}, tt.args...)

			if code != exitcode.UserError {
				t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
			}
			if stderr != tt.want {
				t.Errorf("expected %q, got %q", tt.want, stderr)
			}
		})
	}
}

func TestListCommand_TourHint(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)

	_, stderr, _ := e.run(t, &commands.ListCmd{})
	if stderr != "new here? run: taskify tour\n" {
		t.Errorf("expected tour hint, got %q", stderr)
	}

	e.run(t, &commands.TourCmd{})

	_, stderr, _ = e.run(t, &commands.ListCmd{})
	if stderr != "" {
		t.Errorf("expected no hint after the tour, got %q", stderr)
	}
}

// Tests for add command
func TestAddCommand(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)

	stdout, stderr, code := e.run(t, &commands.AddCmd{}, "--date", "2024-07-01", "Walk", "the", "dog")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (%s)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected %q, got %q", "ok\n", stdout)
	}
	tasks := e.backend.Tasks()
	if len(tasks) != 1 || tasks[0].Text != "Walk the dog" {
		t.Fatalf("expected task to be created, got %+v", tasks)
	}
	if want := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC); !tasks[0].Date.Equal(want) {
		t.Errorf("expected date %v, got %v", want, tasks[0].Date)
	}
}

func TestAddCommand_Errors(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)

	_, stderr, code := e.run(t, &commands.AddCmd{}, "   ")
	if code != exitcode.UserError || stderr != "error: text required\n" {
		t.Errorf("expected text required, got %d %q", code, stderr)
	}

	_, stderr, code = e.run(t, &commands.AddCmd{}, "--date", "someday", "Nap")
	if code != exitcode.UserError || stderr != "error: invalid date: someday (want yyyy-mm-dd)\n" {
		t.Errorf("expected invalid date, got %d %q", code, stderr)
	}
	if len(e.backend.Tasks()) != 0 {
		t.Error("no task should have been created")
	}
}

// Tests for done and rm commands
func TestDoneCommand_ByNumber(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.seedTasks()

	e.run(t, &commands.ListCmd{})
	stdout, stderr, code := e.run(t, &commands.DoneCmd{}, "2")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (%s)", exitcode.Success, code, stderr)
	}
	if stdout != "ok\n" {
		t.Errorf("expected %q, got %q", "ok\n", stdout)
	}
	if contains(e.taskTexts(), "Buy bread") {
		t.Error("completed task should be gone")
	}
	if len(e.backend.Tasks()) != 6 {
		t.Errorf("expected 6 tasks left, got %d", len(e.backend.Tasks()))
	}
}

func TestDoneCommand_NumberFollowsSavedQuery(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.seedTasks()

	e.run(t, &commands.ListCmd{}, "--sort", "date", "--order", "desc")
	_, _, code := e.run(t, &commands.DoneCmd{}, "1")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if contains(e.taskTexts(), "Pay rent") {
		t.Error("expected the latest task to be completed")
	}
}

func TestDoneCommand_OutOfRange(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.seedTasks()

	_, stderr, code := e.run(t, &commands.DoneCmd{}, "9")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if stderr != "error: task number out of range: 9\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if len(e.backend.Tasks()) != 7 {
		t.Error("no task should have been deleted")
	}
}

func TestDoneCommand_NoRef(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)

	_, stderr, code := e.run(t, &commands.DoneCmd{})

	if code != exitcode.UserError || stderr != "error: task reference required\n" {
		t.Errorf("expected task reference required, got %d %q", code, stderr)
	}
}

func TestRmCommand_ByID(t *testing.T) {
	e := newEnv(t, true)
	e.login(t)
	task := e.backend.AddTask("Old task", time.Now())

	stdout, _, code := e.run(t, &commands.RmCmd{}, task.ID)

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stdout != "" {
		t.Errorf("expected no stdout in quiet mode, got %q", stdout)
	}
	if len(e.backend.Tasks()) != 0 {
		t.Error("task should have been deleted")
	}
}

func TestRmCommand_UnknownID(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)

	_, stderr, code := e.run(t, &commands.RmCmd{}, "nope")

	if code != exitcode.UserError {
		t.Errorf("expected exit code %d, got %d", exitcode.UserError, code)
	}
	if !strings.Contains(stderr, "Task not found") {
		t.Errorf("expected backend message, got %q", stderr)
	}
}

// Tests for edit command
func TestEditCommand(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.seedTasks()

	_, stderr, code := e.run(t, &commands.EditCmd{}, "1", "Answer", "all", "email", "--date", "2024-08-01", "--completed")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d (%s)", exitcode.Success, code, stderr)
	}
	for _, task := range e.backend.Tasks() {
		if task.Text != "Answer all email" {
			continue
		}
		if !task.Completed || !task.Date.Equal(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("patch not applied: %+v", task)
		}
		return
	}
	t.Errorf("edited task not found in %v", e.taskTexts())
}

func TestEditCommand_NothingToChange(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)

	_, stderr, code := e.run(t, &commands.EditCmd{}, "1")

	if code != exitcode.UserError || stderr != "error: nothing to change\n" {
		t.Errorf("expected nothing to change, got %d %q", code, stderr)
	}
}

// Tests for search command
func TestSearchCommand(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.seedTasks()

	stdout, _, code := e.run(t, &commands.SearchCmd{}, "buy")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	expected := "   1  [ ] Buy bread  2024-06-04\n   2  [ ] Buy milk  2024-06-01\n"
	if stdout != expected {
		t.Errorf("expected %q, got %q", expected, stdout)
	}
	// The results land in the app's own task window.
	if got := e.app.Dashboard.Tasks(); len(got) != 2 || got[0].Text != "Buy bread" {
		t.Errorf("expected the dashboard to hold the search hits, got %+v", got)
	}

	// Task numbers now refer to the search results.
	e.run(t, &commands.DoneCmd{}, "2")
	if contains(e.taskTexts(), "Buy milk") {
		t.Error("expected the second search hit to be completed")
	}
}

func TestSearchCommand_InteractiveDebounces(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.seedTasks()

	cmd := &commands.SearchCmd{In: strings.NewReader("b\nbu\nbuy\n")}
	stdout, _, code := e.run(t, cmd, "--interactive")

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if n := e.backend.Calls("GET /api/tasks"); n != 1 {
		t.Errorf("expected one listing for the settled term, got %d", n)
	}
	if !strings.Contains(stdout, "Buy bread") || strings.Contains(stdout, "Call mom") {
		t.Errorf("expected results for \"buy\", got %q", stdout)
	}
}

// Tests for session handling through commands
func TestCommand_ExpiredAccessTokenIsRefreshed(t *testing.T) {
	e := newEnv(t, false)
	u := e.login(t)
	e.seedTasks()
	e.backend.RevokeAccess(u.AccessToken)

	stdout, _, code := e.run(t, &commands.ListCmd{})

	if code != exitcode.Success {
		t.Fatalf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if !strings.Contains(stdout, "Answer email") {
		t.Errorf("expected listing, got %q", stdout)
	}
	if n := e.backend.Calls("POST /auth/refresh-token"); n != 1 {
		t.Errorf("expected 1 refresh, got %d", n)
	}
}

func TestCommand_SessionExpired(t *testing.T) {
	e := newEnv(t, false)
	u := e.login(t)
	e.backend.RevokeAccess(u.AccessToken)
	e.backend.RevokeRefresh(u.RefreshToken)

	_, stderr, code := e.run(t, &commands.AddCmd{}, "Nap")

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if stderr != "error: session expired (run: taskify login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if e.app.Sessions.Current().Kind() != session.KindLoggedOut {
		t.Errorf("expected logged out, got %v", e.app.Sessions.Current())
	}
	if len(e.backend.Tasks()) != 0 {
		t.Error("no task should have been created")
	}
}

func TestCommand_RepeatedUnauthorized(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.backend.RejectAccess = true

	_, stderr, code := e.run(t, &commands.ListCmd{})

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if !strings.HasPrefix(stderr, "error: auth error: ") {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if n := e.backend.Calls("GET /api/tasks"); n != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", n)
	}
}

func TestCommand_BackendDown(t *testing.T) {
	e := newEnv(t, false)
	e.login(t)
	e.backend.Close()

	_, stderr, code := e.run(t, &commands.ListCmd{})

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if !strings.HasPrefix(stderr, "error: backend error: ") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}
