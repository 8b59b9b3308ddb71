package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"taskify/internal/app"
	"taskify/internal/config"
	"taskify/internal/dashboard"
	"taskify/internal/exitcode"
	"taskify/internal/output"
	"taskify/internal/service"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `taskify` (no args) and `taskify list`. The query is
// remembered between runs, so flags only change what they name.
type ListCmd struct {
	fs     *pflag.FlagSet
	sort   string
	order  string
	limit  int
	search string
	more   bool
	reset  bool
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "taskify list [--sort text|date] [--order asc|desc] [--limit <n>] [--search <term>] [--more] [--reset]"
}
func (c *ListCmd) NeedsAuth() bool { return true }

func (c *ListCmd) RegisterFlags(fs *pflag.FlagSet) {
	c.fs = fs
	fs.StringVar(&c.sort, "sort", service.SortText, "sort by text or date")
	fs.StringVar(&c.order, "order", "asc", "asc or desc")
	fs.IntVarP(&c.limit, "limit", "n", service.DefaultLimit, "number of tasks to show")
	fs.StringVarP(&c.search, "search", "s", "", "only tasks containing this text")
	fs.BoolVarP(&c.more, "more", "m", false, "show one more page")
	fs.BoolVar(&c.reset, "reset", false, "forget the remembered sort, order and search")
}

func (c *ListCmd) changed(name string) bool {
	return c.fs != nil && c.fs.Changed(name)
}

func (c *ListCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}

	if err := a.Dashboard.LoadQuery(ctx); err != nil {
		return report(errOut, err)
	}
	q := a.Dashboard.Query()
	if c.reset {
		q = service.Query{Limit: a.Config.PageSize, Sort: service.SortText, Order: service.OrderAsc}
	}

	if c.changed("sort") {
		s := strings.ToLower(c.sort)
		if s != service.SortText && s != service.SortDate {
			return usageError(errOut, "invalid sort: %s (want text or date)", c.sort)
		}
		q.Sort = s
	}
	if c.changed("order") {
		o := strings.ToUpper(c.order)
		if o != service.OrderAsc && o != service.OrderDesc {
			return usageError(errOut, "invalid order: %s (want asc or desc)", c.order)
		}
		q.Order = o
	}
	if c.changed("limit") {
		if c.limit < 1 {
			return usageError(errOut, "invalid limit: %d", c.limit)
		}
		q.Limit = c.limit
	}
	if c.changed("search") {
		q.Search = strings.TrimSpace(c.search)
	}
	a.Dashboard.SetQuery(q)

	var res dashboard.Result
	var err error
	if c.more {
		res, err = a.Dashboard.LoadMore(ctx)
	} else {
		res, err = a.Dashboard.Fetch(ctx)
	}
	if err != nil {
		return report(errOut, err)
	}
	if err := a.Dashboard.SaveQuery(ctx); err != nil {
		a.Log.Warn("could not remember query", zap.Error(err))
	}

	return printListing(ctx, a, res, out, errOut)
}

// printListing writes a listing, honoring --quiet for empty results.
func printListing(ctx context.Context, a *app.App, res dashboard.Result, out, errOut io.Writer) int {
	if len(res.Tasks) == 0 && a.Config.Quiet && a.Config.Format == config.FormatText {
		return exitcode.Success
	}
	if err := output.FormatListing(out, a.Config.Format, output.Listing{
		Tasks: res.Tasks,
		Total: res.Total,
		Query: res.Query,
	}); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	if !a.Config.Quiet && a.Config.Format == config.FormatText {
		if seen, err := a.Sessions.TourSeen(ctx); err == nil && !seen {
			fmt.Fprintln(errOut, "new here? run: taskify tour")
		}
	}
	return exitcode.Success
}
