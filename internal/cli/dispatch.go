// Package cli turns the command registry into a cobra command tree and runs it.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskify/internal/app"
	"taskify/internal/commands"
	"taskify/internal/config"
	"taskify/internal/exitcode"
	"taskify/internal/session"
)

// AppFactory builds the App a command runs against.
// Used to inject the backend during dispatch.
type AppFactory func(ctx context.Context, cfg *config.Config) (*app.App, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  AppFactory
}

// NewDispatcher creates a new dispatcher with the given registry and app
// factory. A nil factory builds the App from configuration.
func NewDispatcher(registry *commands.Registry, factory AppFactory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configDir string
	quiet     bool
	debug     bool
	format    string
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		args = []string{"list"}
	}

	cmdName := args[0]
	if !isHelp(cmdName) {
		// If first token starts with -, it's an error (flags require a command)
		if strings.HasPrefix(cmdName, "-") {
			fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
			return exitcode.UserError
		}
		if _, ok := d.registry.Find(cmdName); !ok {
			fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
			return exitcode.UserError
		}
	}

	code := exitcode.Success
	root := d.rootCommand(ctx, &code, out, errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	return code
}

func isHelp(arg string) bool {
	return arg == "help" || arg == "-h" || arg == "--help"
}

// rootCommand builds a fresh tree; commands bind their flags to their own
// fields, so every run re-registers them with default values.
func (d *Dispatcher) rootCommand(ctx context.Context, code *int, out, errOut io.Writer) *cobra.Command {
	var common commonFlags

	root := &cobra.Command{
		Use:           "taskify",
		Short:         "Manage your Taskify tasks from the terminal",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&common.configDir, "config", "", "override config directory")
	pf.BoolVar(&common.quiet, "quiet", false, "suppress informational output")
	pf.BoolVar(&common.debug, "debug", false, "print debug logs to stderr")
	pf.StringVar(&common.format, "format", "", "output format: text, json or yaml")

	for _, cmd := range d.registry.All() {
		cmd := cmd
		cc := &cobra.Command{
			Use:     strings.TrimPrefix(cmd.Usage(), "taskify "),
			Aliases: cmd.Aliases(),
			Short:   cmd.Synopsis(),
			Args:    cobra.ArbitraryArgs,
			RunE: func(cc *cobra.Command, args []string) error {
				*code = d.dispatchCommand(cc.Context(), cmd, common, args, out, errOut)
				return nil
			},
		}
		cmd.RegisterFlags(cc.Flags())

		if cmd.Name() == "help" {
			root.SetHelpCommand(cc)
			continue
		}
		root.AddCommand(cc)
	}
	return root
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, common commonFlags, args []string, out, errOut io.Writer) int {
	// Create config
	cfg, err := config.Load(common.configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = common.quiet
	cfg.Debug = common.debug
	if common.format != "" {
		cfg.Format = common.format
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(errOut, "error: %s\n", err)
			return exitcode.UserError
		}
	}

	factory := d.factory
	if factory == nil {
		factory = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
			return app.New(ctx, cfg, errOut)
		}
	}
	a, err := factory(ctx, cfg)
	if err != nil {
		fmt.Fprintf(errOut, "error: backend error: %s\n", err)
		return exitcode.BackendError
	}
	defer a.Close()

	// Check auth requirements
	if cmd.NeedsAuth() {
		st, err := a.Start(ctx)
		if err != nil {
			fmt.Fprintf(errOut, "error: failed to save session: %v\n", err)
			return exitcode.BackendError
		}
		switch st.Kind() {
		case session.KindAuthenticated:
		case session.KindUnavailable:
			fmt.Fprintf(errOut, "error: backend unavailable: %v\n", st.Cause())
			return exitcode.BackendError
		default:
			fmt.Fprintln(errOut, "error: not logged in (run: taskify login)")
			return exitcode.AuthError
		}
	}

	code := cmd.Run(ctx, a, args, out, errOut)
	a.Log.Debug("command finished", zap.String("command", cmd.Name()), zap.Int("code", code), zap.String("result", exitcode.Name(code)))
	return code
}
