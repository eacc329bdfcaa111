package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/myrjola/flowcast/cmd/cli/campaign"
	"github.com/myrjola/flowcast/cmd/cli/clienv"
	"github.com/myrjola/flowcast/cmd/cli/graph"
	"github.com/myrjola/flowcast/internal/errors"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "flowcast-cli",
		Long:          `Command line utilities for authoring flowcast question graphs and running campaigns.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolP(clienv.VerboseFlag, "v", false, "log debug messages")
	rootCmd.AddGroup(graph.Group, campaign.Group)
	rootCmd.AddCommand(graph.Commands()...)
	rootCmd.AddCommand(campaign.Commands()...)
	return rootCmd
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
