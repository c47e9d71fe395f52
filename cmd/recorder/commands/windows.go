package commands

import (
	"os"

	"recorder-scraper/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(windowsCmd)
}

var windowsCmd = &cobra.Command{
	Use:   "windows",
	Short: "Prints the jobs a scrape would run without contacting the portal.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := readConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		jobs, err := cfg.BatchJobs()
		if err != nil {
			serviceutil.Fatal("invalid jobs", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Job", "Criteria"})
		for _, job := range jobs {
			t.AppendRow(table.Row{job.Name, job.Criteria.String()})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
