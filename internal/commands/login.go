package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"taskify/internal/app"
	"taskify/internal/auth"
	"taskify/internal/exitcode"
	"taskify/internal/linkserver"
	"taskify/internal/session"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	password string
	google   bool
	force    bool

	// In replaces stdin for the password prompt (for testing).
	In io.Reader
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Sign in with email and password, or with Google" }
func (c *LoginCmd) Usage() string {
	return "taskify login [--password <password>] [--force] <email> | login --google"
}
func (c *LoginCmd) NeedsAuth() bool { return false }

func (c *LoginCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.password, "password", "p", "", "password (read from stdin when omitted)")
	fs.BoolVar(&c.google, "google", false, "sign in with Google in the browser")
	fs.BoolVarP(&c.force, "force", "f", false, "sign in even when already signed in")
}

func (c *LoginCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if c.google && len(args) > 0 {
		return usageError(errOut, "--google takes no email")
	}
	if !c.google && len(args) != 1 {
		return usageError(errOut, "email required")
	}

	// Check if already logged in (stored session still refreshes)
	if !c.force {
		st, err := a.Start(ctx)
		if err == nil && st.IsAuthenticated() {
			u, _ := st.User()
			info(a, out, "already logged in as %s", u.Email)
			return exitcode.Success
		}
	}

	var (
		u   session.User
		err error
	)
	if c.google {
		u, err = c.loginGoogle(ctx, a, errOut)
	} else {
		var password string
		password, err = readSecret(c.password, c.In, "Password: ", errOut)
		if err != nil {
			return usageError(errOut, "%v", err)
		}
		u, err = a.Accounts.Login(ctx, strings.TrimSpace(args[0]), password)
	}
	if err != nil {
		return report(errOut, err)
	}

	info(a, out, "logged in as %s", u.Email)
	return exitcode.Success
}

func (c *LoginCmd) loginGoogle(ctx context.Context, a *app.App, errOut io.Writer) (session.User, error) {
	srv := linkserver.New(a.Log)
	if err := srv.Start(); err != nil {
		return session.User{}, fmt.Errorf("could not bind to local port for the sign-in redirect: %w", err)
	}
	defer srv.Close()

	// Print URL to stderr
	fmt.Fprintln(errOut, "Open this URL in your browser:")
	fmt.Fprintln(errOut, auth.GoogleURL(a.Config.BackendURL, srv.GoogleRedirectURL()))

	link, err := srv.Wait(ctx, linkserver.DefaultWait)
	if err != nil {
		return session.User{}, err
	}
	return a.Accounts.CompleteGoogle(ctx, link.Token, link.RefreshToken)
}
