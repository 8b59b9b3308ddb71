package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"taskify/internal/app"
	"taskify/internal/exitcode"
	"taskify/internal/linkserver"
)

func init() {
	Register(&MagicLinkCmd{})
}

// MagicLinkCmd implements the magiclink command: it either requests a
// sign-in link for an email address or signs in with a received link.
type MagicLinkCmd struct {
	consume string
	wait    bool
}

func (c *MagicLinkCmd) Name() string      { return "magiclink" }
func (c *MagicLinkCmd) Aliases() []string { return nil }
func (c *MagicLinkCmd) Synopsis() string  { return "Sign in with a link sent by email" }
func (c *MagicLinkCmd) Usage() string {
	return "taskify magiclink [--wait] <email> | magiclink --consume <link|token>"
}
func (c *MagicLinkCmd) NeedsAuth() bool { return false }

func (c *MagicLinkCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.consume, "consume", "", "sign in with a received link or token")
	fs.BoolVarP(&c.wait, "wait", "w", false, "wait here for the link and sign in")
}

func (c *MagicLinkCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if c.consume != "" {
		if len(args) > 0 {
			return usageError(errOut, "unexpected argument: %s", args[0])
		}
		link, err := linkserver.ParseLink(c.consume, linkserver.KindMagicLink)
		if err != nil {
			return usageError(errOut, "%v", err)
		}
		return c.signIn(ctx, a, link.Token, out, errOut)
	}

	if len(args) != 1 {
		return usageError(errOut, "email required")
	}
	email := strings.TrimSpace(args[0])

	srv, redirect, err := linkTarget(a, c.wait, linkserver.KindMagicLink)
	if err != nil {
		return report(errOut, err)
	}
	if srv != nil {
		defer srv.Close()
	}

	if err := a.Accounts.RequestMagicLink(ctx, email, redirect); err != nil {
		return report(errOut, err)
	}
	info(a, out, "sign-in link sent to %s", email)

	if srv == nil {
		fmt.Fprintln(errOut, "open the link, or run: taskify magiclink --consume <link>")
		return exitcode.Success
	}
	link, err := awaitLink(ctx, srv, linkserver.KindMagicLink, errOut)
	if err != nil {
		return report(errOut, err)
	}
	return c.signIn(ctx, a, link.Token, out, errOut)
}

func (c *MagicLinkCmd) signIn(ctx context.Context, a *app.App, token string, out, errOut io.Writer) int {
	u, err := a.Accounts.ConsumeMagicLink(ctx, token)
	if err != nil {
		return report(errOut, err)
	}
	info(a, out, "logged in as %s", u.Email)
	return exitcode.Success
}
