// Package cmd provides the vmsimctl command-line interface.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vmsimctl",
	Short: "vmsimctl runs and inspects virtual memory simulations.",
	Long: `vmsimctl loads an environment and process descriptor file, runs the ` +
		`virtual memory simulator against them, and can serve the results ` +
		`over HTTP for live inspection.`,
}

// Execute runs the root command, whose subcommands register themselves in
// their own init functions, and exits with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
