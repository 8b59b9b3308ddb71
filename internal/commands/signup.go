package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"taskify/internal/api"
	"taskify/internal/app"
	"taskify/internal/auth"
	"taskify/internal/exitcode"
	"taskify/internal/linkserver"
)

func init() {
	Register(&SignupCmd{})
}

// SignupCmd implements the signup command.
type SignupCmd struct {
	name     string
	password string
	photo    string
	wait     bool

	// In replaces stdin for the password prompt (for testing).
	In io.Reader
}

func (c *SignupCmd) Name() string      { return "signup" }
func (c *SignupCmd) Aliases() []string { return []string{"register"} }
func (c *SignupCmd) Synopsis() string  { return "Create an account" }
func (c *SignupCmd) Usage() string {
	return "taskify signup --name <name> [--password <password>] [--photo <file>] [--wait] <email>"
}
func (c *SignupCmd) NeedsAuth() bool { return false }

func (c *SignupCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.name, "name", "", "your name")
	fs.StringVarP(&c.password, "password", "p", "", "password (read from stdin when omitted)")
	fs.StringVar(&c.photo, "photo", "", "profile photo file")
	fs.BoolVarP(&c.wait, "wait", "w", false, "wait here for the verification link and sign in")
}

func (c *SignupCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		return usageError(errOut, "email required")
	}
	if strings.TrimSpace(c.name) == "" {
		return usageError(errOut, "--name required")
	}
	password, err := readSecret(c.password, c.In, "Password: ", errOut)
	if err != nil {
		return usageError(errOut, "%v", err)
	}

	reg := auth.Registration{Name: strings.TrimSpace(c.name), Email: strings.TrimSpace(args[0]), Password: password}
	if c.photo != "" {
		f, err := os.Open(c.photo)
		if err != nil {
			return usageError(errOut, "cannot read photo: %v", err)
		}
		defer f.Close()
		reg.Photo = &api.FilePart{Field: "photo", Name: filepath.Base(c.photo), Reader: f}
	}

	srv, redirect, err := linkTarget(a, c.wait, linkserver.KindVerifyEmail)
	if err != nil {
		return report(errOut, err)
	}
	if srv != nil {
		defer srv.Close()
	}

	if err := a.Accounts.Register(ctx, reg, redirect); err != nil {
		return report(errOut, err)
	}
	info(a, out, "verification link sent to %s", reg.Email)

	if srv == nil {
		fmt.Fprintln(errOut, "open the link, or run: taskify verify <link>")
		return exitcode.Success
	}
	link, err := awaitLink(ctx, srv, linkserver.KindVerifyEmail, errOut)
	if err != nil {
		return report(errOut, err)
	}
	u, err := a.Accounts.VerifyEmail(ctx, link.Token)
	if err != nil {
		return report(errOut, err)
	}
	info(a, out, "logged in as %s", u.Email)
	return exitcode.Success
}
