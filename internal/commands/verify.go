package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"taskify/internal/app"
	"taskify/internal/exitcode"
	"taskify/internal/linkserver"
)

func init() {
	Register(&VerifyCmd{})
}

// VerifyCmd implements the verify command.
type VerifyCmd struct{}

func (c *VerifyCmd) Name() string      { return "verify" }
func (c *VerifyCmd) Aliases() []string { return nil }
func (c *VerifyCmd) Synopsis() string  { return "Confirm your email address and sign in" }
func (c *VerifyCmd) Usage() string     { return "taskify verify <link|token>" }
func (c *VerifyCmd) NeedsAuth() bool   { return false }

func (c *VerifyCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *VerifyCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		return usageError(errOut, "link or token required")
	}
	link, err := linkserver.ParseLink(args[0], linkserver.KindVerifyEmail)
	if err != nil {
		return usageError(errOut, "%v", err)
	}

	u, err := a.Accounts.VerifyEmail(ctx, link.Token)
	if err != nil {
		return report(errOut, err)
	}
	info(a, out, "email verified, logged in as %s", u.Email)
	return exitcode.Success
}
