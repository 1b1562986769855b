// Package cmd holds the CLI commands for the nudge binary.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/plandeck/nudge/internal/build"
	"github.com/plandeck/nudge/internal/config"
)

// Execute loads configuration and runs the root command.
func Execute() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	rootCmd := &cobra.Command{
		Use:   "nudge",
		Short: "Notification fan-out for plan and task events",
		Long: "Nudge listens for plan and task mutations, turns them into notification\n" +
			"events, and fans each event out to the configured delivery adapters\n" +
			"through a durable-workflow engine.",
		Version: build.String(),
	}

	rootCmd.AddCommand(NewServeCmd(cfg))
	rootCmd.AddCommand(NewWorkerCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
