package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"taskify/internal/app"
	"taskify/internal/config"
	"taskify/internal/exitcode"
	"taskify/internal/output"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	date string
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string     { return "taskify add [--date <yyyy-mm-dd>] <text...>" }
func (c *AddCmd) NeedsAuth() bool   { return true }

func (c *AddCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.date, "date", "d", "today", "due date (yyyy-mm-dd, today or tomorrow)")
}

func (c *AddCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	// Join args to form the text
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return usageError(errOut, "text required")
	}

	date, err := parseDate(c.date, time.Now())
	if err != nil {
		return usageError(errOut, "%v", err)
	}

	task, err := a.Dashboard.Add(ctx, text, date)
	if err != nil {
		return report(errOut, err)
	}

	if a.Config.Format != config.FormatText {
		if err := output.FormatSingleTask(out, a.Config.Format, task); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		return exitcode.Success
	}
	info(a, out, "ok")
	return exitcode.Success
}

// parseDate reads a due date. Dates without a time are midnight UTC, the
// way the web client's date picker sends them.
func parseDate(s string, now time.Time) (time.Time, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	switch s {
	case "", "today":
		return day(now), nil
	case "tomorrow":
		return day(now.AddDate(0, 0, 1)), nil
	}
	if t, err := time.Parse(output.DateLayout, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, strings.ToUpper(s)); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date: %s (want yyyy-mm-dd)", s)
}
