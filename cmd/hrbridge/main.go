package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd is hrbridge's only command: the spec fixes the device path and
// TCP port as compile-time constants, so there is nothing left to
// subcommand (spec.md §6 "CLI and environment").
var rootCmd = &cobra.Command{
	Use:     "hrbridge",
	Short:   "BLE heart-rate sensor to TCP notification bridge",
	Version: version,
	Long: `hrbridge brings up a serial link to an HM-11 style BLE module,
connects it to the configured peer device, subscribes to its notification
characteristic, and fans out every observed sample to any number of TCP
clients connected on port 9000.

The server takes no arguments: the module device node and TCP port are
fixed at build time. Exit code 0 on clean shutdown, 1 on setup failure.`,
	RunE: runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML config file (optional; defaults apply otherwise)")
	rootCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
}
