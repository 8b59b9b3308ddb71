// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"io"

	"github.com/spf13/pflag"

	"taskify/internal/app"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires an authenticated session.
	// The dispatcher restores the session before Run and refuses to run the
	// command when the user is logged out.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *pflag.FlagSet)

	// Run executes the command.
	// a is always provided (config, session, services).
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, a *app.App, args []string, out, errOut io.Writer) int
}
