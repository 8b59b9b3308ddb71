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
	Register(&ForgotPasswordCmd{})
	Register(&ResetPasswordCmd{})
}

// ForgotPasswordCmd implements the forgot-password command.
type ForgotPasswordCmd struct {
	password string
	wait     bool

	// In replaces stdin for the password prompt (for testing).
	In io.Reader
}

func (c *ForgotPasswordCmd) Name() string      { return "forgot-password" }
func (c *ForgotPasswordCmd) Aliases() []string { return nil }
func (c *ForgotPasswordCmd) Synopsis() string  { return "Email a password reset link" }
func (c *ForgotPasswordCmd) Usage() string {
	return "taskify forgot-password [--wait [--password <new>]] <email>"
}
func (c *ForgotPasswordCmd) NeedsAuth() bool { return false }

func (c *ForgotPasswordCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.password, "password", "p", "", "new password once the link arrives (with --wait)")
	fs.BoolVarP(&c.wait, "wait", "w", false, "wait here for the link and set the new password")
}

func (c *ForgotPasswordCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		return usageError(errOut, "email required")
	}
	email := strings.TrimSpace(args[0])

	srv, redirect, err := linkTarget(a, c.wait, linkserver.KindResetPassword)
	if err != nil {
		return report(errOut, err)
	}
	if srv != nil {
		defer srv.Close()
	}

	if err := a.Accounts.ForgotPassword(ctx, email, redirect); err != nil {
		return report(errOut, err)
	}
	info(a, out, "reset link sent to %s", email)

	if srv == nil {
		fmt.Fprintln(errOut, "open the link, or run: taskify reset-password <link>")
		return exitcode.Success
	}
	link, err := awaitLink(ctx, srv, linkserver.KindResetPassword, errOut)
	if err != nil {
		return report(errOut, err)
	}
	return resetPassword(ctx, a, link.Token, c.password, c.In, out, errOut)
}

// ResetPasswordCmd implements the reset-password command.
type ResetPasswordCmd struct {
	password string

	// In replaces stdin for the password prompt (for testing).
	In io.Reader
}

func (c *ResetPasswordCmd) Name() string      { return "reset-password" }
func (c *ResetPasswordCmd) Aliases() []string { return nil }
func (c *ResetPasswordCmd) Synopsis() string  { return "Set a new password with a reset link" }
func (c *ResetPasswordCmd) Usage() string {
	return "taskify reset-password [--password <new>] <link|token>"
}
func (c *ResetPasswordCmd) NeedsAuth() bool { return false }

func (c *ResetPasswordCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.password, "password", "p", "", "new password (read from stdin when omitted)")
}

func (c *ResetPasswordCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		return usageError(errOut, "link or token required")
	}
	link, err := linkserver.ParseLink(args[0], linkserver.KindResetPassword)
	if err != nil {
		return usageError(errOut, "%v", err)
	}
	return resetPassword(ctx, a, link.Token, c.password, c.In, out, errOut)
}

func resetPassword(ctx context.Context, a *app.App, token, password string, in io.Reader, out, errOut io.Writer) int {
	password, err := readSecret(password, in, "New password: ", errOut)
	if err != nil {
		return usageError(errOut, "%v", err)
	}
	u, err := a.Accounts.ResetPassword(ctx, token, password)
	if err != nil {
		return report(errOut, err)
	}
	info(a, out, "password changed, logged in as %s", u.Email)
	return exitcode.Success
}
