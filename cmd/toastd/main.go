package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:   "toastd",
		Short: "Transient notification scheduler",
		Long: `toastd schedules short-lived toast notifications for a host app.

It rate-limits presentations, coalesces duplicates, lets urgent toasts
interrupt routine ones and persists critical toasts across restarts.
Toasts are rendered on connected browsers (websocket), the console and
optionally a Telegram chat.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./toastd.yaml", "path to config (yaml or json)")

	rootCmd.AddCommand(
		runCmd(&cfgPath),
		validateCmd(&cfgPath),
		snapshotsCmd(&cfgPath),
		versionCmd(),
	)

	return rootCmd
}
