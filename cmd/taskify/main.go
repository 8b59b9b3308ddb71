// Command taskify is a terminal client for the Taskify task manager.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"taskify/internal/app"
	"taskify/internal/cli"
	"taskify/internal/commands"
	"taskify/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Interrupts cancel in-flight requests and any pending link wait.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := cli.NewDispatcher(commands.DefaultRegistry, func(ctx context.Context, cfg *config.Config) (*app.App, error) {
		return app.New(ctx, cfg, os.Stderr)
	})
	return d.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}
