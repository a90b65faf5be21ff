//go:build linux

// Command rgo edits the link table of a running rgo-server through its
// command pipe and lists the table over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rogeraird/rgo/internal/config"
	"github.com/spf13/cobra"
)

const (
	defaultServer  = "http://localhost:3000"
	defaultTimeout = 5 * time.Second
)

// cliOptions are the persistent flags shared by every subcommand.
type cliOptions struct {
	pipe    string
	server  string
	timeout time.Duration
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "rgo:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:           "rgo",
		Short:         "Manage rgo-server redirect links",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.pipe, "pipe", config.DefaultChannelPath, "command pipe of the server")
	flags.StringVar(&opts.server, "server", defaultServer, "base URL of the server")
	flags.DurationVar(&opts.timeout, "timeout", defaultTimeout, "how long to wait for the server")

	cmd.AddCommand(
		newListCommand(opts),
		newAddCommand(opts),
		newRemoveCommand(opts),
		newPersistCommand(opts),
	)
	return cmd
}
