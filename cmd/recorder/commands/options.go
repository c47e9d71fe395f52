package commands

import (
	"os"

	"recorder-scraper/lib/scrapers/recorder"
	"recorder-scraper/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(optionsCmd)
}

var optionsCmd = &cobra.Command{
	Use:   "options [jurisdiction]",
	Short: "Lists the jurisdictions a portal offers, or the sub-jurisdictions of one.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		opts, err := cfg.SessionOptions()
		if err != nil {
			serviceutil.Fatal("invalid session config", err)
		}
		session, err := recorder.NewSession(opts)
		if err != nil {
			serviceutil.Fatal("failed to create session", err)
		}
		defer session.Close()

		var jurisdiction string
		if len(args) > 0 {
			jurisdiction = args[0]
		}
		options, err := recorder.NewNavigator(session).ListOptions(cmd.Context(), jurisdiction)
		if err != nil {
			serviceutil.Fatal("failed to list options", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Value", "Text"})
		for _, o := range options {
			t.AppendRow(table.Row{o.Value, o.Text})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
