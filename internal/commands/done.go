package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"taskify/internal/app"
	"taskify/internal/exitcode"
)

func init() {
	Register(&DoneCmd{})
}

// DoneCmd implements the done command. Completed tasks leave the list.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return []string{"complete"} }
func (c *DoneCmd) Synopsis() string  { return "Complete a task" }
func (c *DoneCmd) Usage() string     { return "taskify done <ref>" }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	task, code, ok := lookupTask(ctx, a, args, errOut)
	if !ok {
		return code
	}

	if err := a.Dashboard.Complete(ctx, task.ID); err != nil {
		return report(errOut, err)
	}

	info(a, out, "ok")
	return exitcode.Success
}
