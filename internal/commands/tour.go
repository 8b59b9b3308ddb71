package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"taskify/internal/app"
	"taskify/internal/exitcode"
)

func init() {
	Register(&TourCmd{})
}

// TourCmd implements the tour command: a short walkthrough shown once per
// sign-in. Logging out forgets that it was seen.
type TourCmd struct {
	status bool
}

func (c *TourCmd) Name() string      { return "tour" }
func (c *TourCmd) Aliases() []string { return nil }
func (c *TourCmd) Synopsis() string  { return "Show a quick tour of taskify" }
func (c *TourCmd) Usage() string     { return "taskify tour [--status]" }
func (c *TourCmd) NeedsAuth() bool   { return true }

func (c *TourCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&c.status, "status", false, "only report whether the tour was seen")
}

func (c *TourCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if c.status {
		seen, err := a.Sessions.TourSeen(ctx)
		if err != nil {
			return report(errOut, err)
		}
		if seen {
			fmt.Fprintln(out, "seen")
		} else {
			fmt.Fprintln(out, "not seen")
		}
		return exitcode.Success
	}

	fmt.Fprint(out, tourText)
	if err := a.Sessions.MarkTourSeen(ctx); err != nil {
		return report(errOut, err)
	}
	return exitcode.Success
}

const tourText = `Welcome to taskify!

  taskify add Buy milk --date tomorrow   add a task
  taskify                                list the first tasks
  taskify list --more                    show the next page
  taskify list --sort date --order desc  newest due dates first
  taskify search milk                    find tasks by text
  taskify edit 1 Buy oat milk            change the first task
  taskify done 1                         complete the first task
  taskify profile --photo me.png         update your profile

Task numbers refer to the last listing.
`
