package commands

import (
	"context"
	"errors"
	"io"

	"github.com/spf13/pflag"

	"taskify/internal/app"
	"taskify/internal/exitcode"
	"taskify/internal/session"
)

func init() {
	Register(&LogoutCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct {
	force bool
}

func (c *LogoutCmd) Name() string      { return "logout" }
func (c *LogoutCmd) Aliases() []string { return nil }
func (c *LogoutCmd) Synopsis() string  { return "Sign out and revoke the stored session" }
func (c *LogoutCmd) Usage() string     { return "taskify logout [--force]" }
func (c *LogoutCmd) NeedsAuth() bool   { return false }

func (c *LogoutCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.force, "force", "f", false, "forget the session locally even if the backend cannot be reached")
}

func (c *LogoutCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if _, err := a.Sessions.StoredUser(ctx); errors.Is(err, session.ErrNoCredentials) {
		info(a, out, "not logged in")
		return exitcode.Success
	}

	if c.force {
		if err := a.Accounts.Forget(ctx); err != nil {
			return usageError(errOut, "failed to remove session: %v", err)
		}
		info(a, out, "ok")
		return exitcode.Success
	}

	if err := a.Accounts.Logout(ctx); err != nil {
		// The backend refused; the session is kept.
		return report(errOut, err)
	}
	info(a, out, "ok")
	return exitcode.Success
}
