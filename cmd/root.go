// Package cmd defines and implements the CLI commands for the autocrawl
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autocrawl",
		Short: "Vehicle catalog crawler",
		Long: `autocrawl walks a vehicle-catalog web API and mirrors it into Postgres:
brands, series, trims with their characteristic sheets, photo listings and
360-degree panorama sets, plus the image files themselves on local disk.
Repeated runs reconcile against stored rows instead of duplicating them.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (YAML)")
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newSchemaCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
