package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"taskify/internal/app"
	"taskify/internal/config"
	"taskify/internal/exitcode"
	"taskify/internal/output"
	"taskify/internal/service"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command.
type EditCmd struct {
	fs        *pflag.FlagSet
	text      string
	date      string
	completed bool
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return nil }
func (c *EditCmd) Synopsis() string  { return "Change a task's text, date or completed flag" }
func (c *EditCmd) Usage() string {
	return "taskify edit [--text <text>] [--date <yyyy-mm-dd>] [--completed] <ref> [text...]"
}
func (c *EditCmd) NeedsAuth() bool { return true }

func (c *EditCmd) RegisterFlags(fs *pflag.FlagSet) {
	c.fs = fs
	fs.StringVarP(&c.text, "text", "t", "", "new text")
	fs.StringVarP(&c.date, "date", "d", "", "new due date")
	fs.BoolVar(&c.completed, "completed", false, "set the completed flag (--completed=false clears it)")
}

func (c *EditCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) == 0 {
		return usageError(errOut, "%v", ErrTaskRefRequired)
	}

	patch, err := c.patch(strings.Join(args[1:], " "))
	if err != nil {
		return usageError(errOut, "%v", err)
	}
	if patch.IsEmpty() {
		return usageError(errOut, "nothing to change")
	}

	task, code, ok := lookupTask(ctx, a, args[:1], errOut)
	if !ok {
		return code
	}

	updated, err := a.Dashboard.Edit(ctx, task.ID, patch)
	if err != nil {
		return report(errOut, err)
	}

	if a.Config.Format != config.FormatText {
		if err := output.FormatSingleTask(out, a.Config.Format, updated); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		return exitcode.Success
	}
	info(a, out, "ok")
	return exitcode.Success
}

func (c *EditCmd) patch(positional string) (service.TaskPatch, error) {
	var patch service.TaskPatch

	text := strings.TrimSpace(c.text)
	if text == "" {
		text = strings.TrimSpace(positional)
	} else if positional != "" {
		return patch, errors.New("text given twice")
	}
	if text != "" {
		patch.Text = &text
	}

	if c.date != "" {
		d, err := parseDate(c.date, time.Now())
		if err != nil {
			return patch, err
		}
		patch.Date = &d
	}

	if c.fs != nil && c.fs.Changed("completed") {
		done := c.completed
		patch.Completed = &done
	}
	return patch, nil
}
