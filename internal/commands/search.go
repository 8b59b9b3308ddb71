package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"taskify/internal/app"
	"taskify/internal/dashboard"
	"taskify/internal/exitcode"
)

func init() {
	Register(&SearchCmd{})
}

// SearchCmd implements the search command. With --interactive every line
// read from stdin is a new search term; only terms that stay unchanged for
// the search delay are sent to the backend.
type SearchCmd struct {
	interactive bool

	// In replaces stdin (for testing).
	In io.Reader
}

func (c *SearchCmd) Name() string      { return "search" }
func (c *SearchCmd) Aliases() []string { return []string{"find"} }
func (c *SearchCmd) Synopsis() string  { return "Search tasks by text" }
func (c *SearchCmd) Usage() string     { return "taskify search [--interactive] [term...]" }
func (c *SearchCmd) NeedsAuth() bool   { return true }

func (c *SearchCmd) RegisterFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.interactive, "interactive", "i", false, "read search terms from stdin as you type")
}

func (c *SearchCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	if c.interactive && len(args) > 0 {
		return usageError(errOut, "--interactive reads terms from stdin, not arguments")
	}

	var (
		mu   sync.Mutex
		code = exitcode.Success
	)
	onSearch := func(res dashboard.Result) {
		mu.Lock()
		defer mu.Unlock()
		if res.Stale {
			return
		}
		if res.Err != nil {
			code = report(errOut, res.Err)
			return
		}
		code = printListing(ctx, a, res, out, errOut)
	}

	ctrl := a.Dashboard
	ctrl.SetOnSearch(onSearch)
	defer ctrl.SetOnSearch(nil)
	if err := ctrl.LoadQuery(ctx); err != nil {
		return report(errOut, err)
	}

	if !c.interactive {
		ctrl.Search(ctx, strings.TrimSpace(strings.Join(args, " ")))
		ctrl.FlushSearch()
	} else {
		scanner := bufio.NewScanner(inputReader(c.In))
		for scanner.Scan() {
			ctrl.Search(ctx, strings.TrimSpace(scanner.Text()))
		}
		if err := scanner.Err(); err != nil {
			ctrl.Close()
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		// Input ended: run the last term without waiting out the delay,
		// and let one already on its way finish printing.
		ctrl.FlushSearch()
	}

	mu.Lock()
	defer mu.Unlock()
	if code == exitcode.Success {
		if err := ctrl.SaveQuery(ctx); err != nil {
			a.Log.Warn("could not remember query", zap.Error(err))
		}
	}
	return code
}
