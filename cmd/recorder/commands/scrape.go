package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"recorder-scraper/lib/assetsink"
	"recorder-scraper/lib/batch"
	"recorder-scraper/lib/notify"
	"recorder-scraper/lib/scrapers/recorder"
	"recorder-scraper/lib/serviceutil"
	"recorder-scraper/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	scrapeOutput     string
	scrapeSkipImages bool
	scrapeWorkers    int
)

func init() {
	scrapeCmd.Flags().StringVarP(&scrapeOutput, "output", "o", "", "The directory to write results to, overrides outputDir.")
	scrapeCmd.Flags().BoolVar(&scrapeSkipImages, "skip-images", false, "Write records without downloading their pages.")
	scrapeCmd.Flags().IntVarP(&scrapeWorkers, "workers", "w", 0, "The number of jobs to run at once, overrides workers.")
	rootCmd.AddCommand(scrapeCmd)
}

func openSinks(ctx context.Context, cfg Config, runID string) (recorder.Sink, func(), error) {
	files, err := assetsink.NewFilesystemSink(filepath.Join(cfg.OutputDir, runID))
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database == nil {
		return files, func() { files.Close() }, nil
	}

	db, err := cfg.Database.OpenDB()
	if err != nil {
		files.Close()
		return nil, nil, err
	}
	rows, err := assetsink.NewSQLSink(ctx, db)
	if err != nil {
		files.Close()
		db.Close()
		return nil, nil, err
	}
	return assetsink.Multi(files, rows), func() {
		files.Close()
		db.Close()
	}, nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--output <dir>] [--skip-images] [--workers <n>]",
	Short: "Runs every job in the config and writes records and page images.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		err := telemetry.SetupFromEnv(ctx, "recorder")
		if err != nil {
			serviceutil.Fatal("failed to setup telemetry", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				slog.Warn("telemetry shutdown", "err", err)
			}
		}()
		telemetry.InstrumentPerfStats(ctx, 15*time.Second)

		cfg, err := readConfig(configPath)
		if err != nil {
			serviceutil.Fatal("failed to read config", err)
		}
		if scrapeOutput != "" {
			cfg.OutputDir = scrapeOutput
		}
		if scrapeSkipImages {
			cfg.SkipImages = true
		}
		if scrapeWorkers > 0 {
			cfg.Workers = scrapeWorkers
		}

		options, err := cfg.SessionOptions()
		if err != nil {
			serviceutil.Fatal("invalid session config", err)
		}
		jobs, err := cfg.BatchJobs()
		if err != nil {
			serviceutil.Fatal("invalid jobs", err)
		}

		runID, err := notify.NewRunID()
		if err != nil {
			serviceutil.Fatal("failed to generate run id", err)
		}
		slog.Info("starting run", "run", runID, "jobs", len(jobs), "workers", cfg.Workers)

		sink, closeSinks, err := openSinks(ctx, cfg, runID)
		if err != nil {
			serviceutil.Fatal("failed to open output", err)
		}
		defer closeSinks()

		runner := batch.Runner{
			Workers: cfg.Workers,
			NewSession: func(job batch.Job) (*recorder.Session, error) {
				opts := options
				if opts.DumpDir != "" {
					opts.DumpDir = filepath.Join(opts.DumpDir, runID, assetsink.SafeName(job.Name))
				}
				return recorder.NewSession(opts)
			},
			Sink: sink,
			Options: recorder.JobOptions{
				SkipImages: cfg.SkipImages,
				OnReport: func(err error) {
					slog.Warn("record skipped", "run", runID, "err", err)
				},
			},
		}
		results := runner.Run(ctx, jobs)

		t := notify.SummaryTable(results)
		t.SetOutputMirror(os.Stdout)
		t.SetStyle(table.StyleRounded)
		t.Render()

		if cfg.Notify.Enabled() {
			err = notify.SendSummary(ctx, cfg.Notify, runID, results)
			if err != nil {
				slog.Error("failed to send summary", "err", err)
			}
		}

		_, failed := batch.Total(results)
		if ctx.Err() != nil {
			serviceutil.Fatal("run interrupted", ctx.Err())
		}
		if failed > 0 {
			serviceutil.Fatal("run finished with failures", fmt.Errorf("%d of %d jobs failed", failed, len(results)))
		}
	},
}
