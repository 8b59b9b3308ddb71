package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"taskify/internal/app"
	"taskify/internal/exitcode"
	"taskify/internal/session"
)

func init() {
	Register(&StatusCmd{})
}

// StatusCmd implements the status command.
type StatusCmd struct{}

func (c *StatusCmd) Name() string      { return "status" }
func (c *StatusCmd) Aliases() []string { return nil }
func (c *StatusCmd) Synopsis() string  { return "Show the session state" }
func (c *StatusCmd) Usage() string     { return "taskify status" }
func (c *StatusCmd) NeedsAuth() bool   { return false }

func (c *StatusCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	st, err := a.Start(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "error: failed to save session: %v\n", err)
		return exitcode.BackendError
	}

	switch st.Kind() {
	case session.KindAuthenticated:
		u, _ := st.User()
		fmt.Fprintf(out, "logged in as %s <%s>\n", u.Name, u.Email)
		tok, err := a.Refresher.Token()
		if err == nil && !tok.Expiry.IsZero() {
			fmt.Fprintf(out, "access token valid until %s\n", tok.Expiry.Local().Format(time.RFC3339))
		}
		fmt.Fprintf(out, "backend %s\n", a.Config.BackendURL)
		return exitcode.Success
	case session.KindUnavailable:
		fmt.Fprintf(out, "backend unavailable: %v\n", st.Cause())
		return exitcode.BackendError
	default:
		fmt.Fprintln(out, "not logged in")
		return exitcode.AuthError
	}
}
