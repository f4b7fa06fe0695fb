package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "composer",
	Short:        "Compose, sign and send HTTP requests through an executor",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(newSendCmd())
	rootCmd.AddCommand(newAuthTypesCmd())

	rootCmd.SetOut(os.Stdout)
	rootCmd.SetErr(os.Stderr)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
