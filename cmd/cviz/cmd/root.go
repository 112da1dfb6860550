package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

var endpoint string

var rootCmd = &cobra.Command{
	Use:   "cviz",
	Short: "Bus tooling for the cviz relay",
	Long:  "Record, play back and inspect traffic on the cviz message bus.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e",
		"tcp://127.0.0.1:5555", "bus endpoint to connect to")
}

// Execute runs the root command with the given context so subcommands stop
// cleanly on OS interrupts.
func Execute(ctx context.Context) {
	rootCmd.SetContext(ctx)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
