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
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "taskify help" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *pflag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  taskify                                     List tasks (same as taskify list)
  taskify list [--sort text|date] [--order asc|desc] [--limit <n>] [--search <term>] [--more] [--reset]
  taskify add [--date <yyyy-mm-dd>] <text...>
  taskify edit [--text <text>] [--date <yyyy-mm-dd>] [--completed] <ref> [text...]
  taskify done <ref>
  taskify rm <ref>
  taskify search [--interactive] [term...]
  taskify login [--password <password>] [--force] <email>
  taskify login --google
  taskify logout [--force]
  taskify signup --name <name> [--password <password>] [--photo <file>] [--wait] <email>
  taskify verify <link|token>
  taskify magiclink [--wait] <email>
  taskify magiclink --consume <link|token>
  taskify forgot-password [--wait [--password <new>]] <email>
  taskify reset-password [--password <new>] <link|token>
  taskify whoami
  taskify profile [--email <email>] [--password <password>] [--photo <file>]
  taskify tour [--status]
  taskify status
  taskify help
  taskify version

A <ref> is a task number from the last listing or a task id.

Common flags:
  --config <dir>   Override config directory
  --quiet          Suppress informational output
  --debug          Print debug logs to stderr
  --format <fmt>   Output format: text, json or yaml
`
