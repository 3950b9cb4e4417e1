// Package cmd defines the CLI commands for the onboarder executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onboarder",
		Short: "Property onboarding extraction service",
		Long: `onboarder turns property listing websites into structured records.
It crawls a property page and its relevant subpages, runs staged extraction
over the gathered content, and serves merged results, quality scores, and
competitor comparisons over HTTP.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml)")
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
