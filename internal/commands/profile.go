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
	"taskify/internal/output"
)

func init() {
	Register(&ProfileCmd{})
}

// ProfileCmd implements the profile command.
type ProfileCmd struct {
	email    string
	password string
	photo    string
}

func (c *ProfileCmd) Name() string      { return "profile" }
func (c *ProfileCmd) Aliases() []string { return nil }
func (c *ProfileCmd) Synopsis() string  { return "Change your email, password or photo" }
func (c *ProfileCmd) Usage() string {
	return "taskify profile [--email <email>] [--password <password>] [--photo <file>]"
}
func (c *ProfileCmd) NeedsAuth() bool { return true }

func (c *ProfileCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "new email address")
	fs.StringVarP(&c.password, "password", "p", "", "new password")
	fs.StringVar(&c.photo, "photo", "", "new profile photo file")
}

func (c *ProfileCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}

	upd := auth.ProfileUpdate{Email: strings.TrimSpace(c.email), Password: c.password}
	if c.photo != "" {
		f, err := os.Open(c.photo)
		if err != nil {
			return usageError(errOut, "cannot read photo: %v", err)
		}
		defer f.Close()
		upd.Photo = &api.FilePart{Field: "photo", Name: filepath.Base(c.photo), Reader: f}
	}
	if upd.Email == "" && upd.Password == "" && upd.Photo == nil {
		return usageError(errOut, "nothing to change")
	}

	u, err := a.Accounts.UpdateProfile(ctx, upd)
	if err != nil {
		return report(errOut, err)
	}
	if a.Config.Quiet {
		return exitcode.Success
	}
	if err := output.FormatProfile(out, a.Config.Format, output.ProfileOf(u)); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	return exitcode.Success
}
