package commands

import (
	"context"
	"fmt"
	"os"

	"recorder-scraper/lib/serviceutil"
	"recorder-scraper/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "recorder",
	Short: "recorder is a CLI for scraping county recorder search portals.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "recorder.json5", "The config file to read, <name>.local.json5 overrides it.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every form step.")
}

func ExecuteContext(ctx context.Context) {
	ctx, cancel := serviceutil.SignalContext(ctx)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
