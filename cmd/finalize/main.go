// Command finalize downloads the filing pages referenced by a task table and prints
// them to PDF, writing <input>_finalized_offline.csv next to the input.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/core/finalize"
	"filing_tasks/pkg/core/ingest"
	"filing_tasks/pkg/core/logging"
	"filing_tasks/pkg/core/render"
	"filing_tasks/pkg/core/store"
)

var (
	configPath      string
	debug           bool
	outDir          string
	userAgent       string
	overwrite       bool
	onlyMissing     bool
	sleepMin        time.Duration
	sleepMax        time.Duration
	maxFetchRetries int
	htmlCacheDir    string
	failedLog       string
	ledgerPath      string
	summaryPath     string
	noProgress      bool
	noVerify        bool
	chromeBin       string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "finalize <tasks.csv>",
	Short:         "Download filing pages and print them to PDF (offline rendering)",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd)
		if err := cfg.Validate(); err != nil {
			return err
		}
		logger, err = logging.New(debug)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file")
	f.BoolVar(&debug, "debug", false, "Verbose logging")
	f.StringVar(&outDir, "outdir", "", "Directory for the rendered PDFs")
	f.StringVar(&userAgent, "ua", "", "User-Agent with contact info, per SEC guidance")
	f.BoolVar(&overwrite, "overwrite", false, "Re-download and re-render even when files exist")
	f.BoolVar(&onlyMissing, "only-missing", false, "Only process slots whose PDF filename is empty")
	f.DurationVar(&sleepMin, "sleep-min", 800*time.Millisecond, "Minimum politeness delay")
	f.DurationVar(&sleepMax, "sleep-max", 1400*time.Millisecond, "Maximum politeness delay")
	f.IntVar(&maxFetchRetries, "max-fetch-retries", 2, "Retries per URL after the first attempt")
	f.StringVar(&htmlCacheDir, "html-cache", "", "Directory for cached HTML (default html_cache)")
	f.StringVar(&failedLog, "failed-log", "", "Failure log CSV (default failed_rows.csv)")
	f.StringVar(&ledgerPath, "ledger", "", "SQLite ledger of slot outcomes (DATABASE_URL takes precedence)")
	f.StringVar(&summaryPath, "summary", "", "Write an HTML run summary to this path")
	f.BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	f.BoolVar(&noVerify, "no-verify", false, "Skip opening rendered PDFs to check they are readable")
	f.StringVar(&chromeBin, "chrome", "", "Chrome/Chromium binary (default: discovered or downloaded)")
	_ = rootCmd.MarkFlagRequired("outdir")
}

func applyFlags(cmd *cobra.Command) {
	changed := cmd.Flags().Changed
	if changed("outdir") {
		cfg.Finalize.OutDir = outDir
	}
	if changed("ua") {
		cfg.HTTP.UserAgent = userAgent
	}
	if changed("overwrite") {
		cfg.Finalize.Overwrite = overwrite
	}
	if changed("only-missing") {
		cfg.Finalize.OnlyMissing = onlyMissing
	}
	if changed("sleep-min") {
		cfg.Finalize.SleepMin = sleepMin
	}
	if changed("sleep-max") {
		cfg.Finalize.SleepMax = sleepMax
	}
	if changed("max-fetch-retries") {
		cfg.Finalize.MaxFetchRetries = maxFetchRetries
	}
	if changed("html-cache") {
		cfg.Finalize.HTMLCacheDir = htmlCacheDir
	}
	if changed("failed-log") {
		cfg.Finalize.FailureLogPath = failedLog
	}
	if changed("ledger") {
		cfg.Ledger.SQLitePath = ledgerPath
	}
	if changed("summary") {
		cfg.Finalize.SummaryPath = summaryPath
	}
	if noProgress {
		cfg.Finalize.Progress = false
	}
	if noVerify {
		cfg.Finalize.VerifyPDF = false
	}
	if changed("chrome") {
		cfg.Render.ChromeBin = chromeBin
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	ledger := openLedger(ctx, cfg.Ledger, logger)
	defer ledger.Close()

	renderer := render.NewChromeRenderer(cfg.Render, cfg.HTTP.UserAgent, logger)
	defer renderer.Close()

	finalizer := finalize.New(cfg.Finalize, ingest.NewDocumentFetcher(cfg.HTTP), renderer, logger)
	finalizer.Ledger = ledger
	if cfg.Finalize.VerifyPDF {
		finalizer.Verifier = render.PageVerifier{}
	}

	summary, err := finalizer.Run(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Done. Wrote %s\n", summary.Output)
	if n := len(summary.Failures); n > 0 {
		fmt.Printf("%d slot(s) failed; see %s\n", n, cfg.Finalize.FailureLogPath)
	}
	return nil
}

// openLedger falls back to a no-op ledger when the configured backend is unusable.
func openLedger(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) store.Ledger {
	ledger, err := store.Open(ctx, cfg)
	if err != nil {
		logger.Warn("ledger unavailable, outcomes will not be recorded", zap.Error(err))
		return store.NopLedger{}
	}
	return ledger
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
