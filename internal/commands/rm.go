package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"taskify/internal/app"
	"taskify/internal/exitcode"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"delete"} }
func (c *RmCmd) Synopsis() string  { return "Delete a task" }
func (c *RmCmd) Usage() string     { return "taskify rm <ref>" }
func (c *RmCmd) NeedsAuth() bool   { return true }

func (c *RmCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	task, code, ok := lookupTask(ctx, a, args, errOut)
	if !ok {
		return code
	}

	if err := a.Dashboard.Delete(ctx, task.ID); err != nil {
		return report(errOut, err)
	}

	info(a, out, "ok")
	return exitcode.Success
}
