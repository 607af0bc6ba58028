// Command manifest builds the AB and TWO filing manifests from a company list.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/core/ingest"
	"filing_tasks/pkg/core/logging"
	"filing_tasks/pkg/core/manifest"
)

var (
	configPath  string
	debug       bool
	inputPath   string
	tickersPath string
	minDate     string
	forms       string
	abPath      string
	twoPath     string
	errorsPath  string
	userAgent   string
	delay       time.Duration

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "manifest",
	Short:         "Build manifest_ab.csv and manifest_two.csv from SEC EDGAR submissions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd); err != nil {
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
	f.StringVar(&inputPath, "input", "", "Input CSV with Company,Ticker,Sector")
	f.StringVar(&tickersPath, "tickers", "", "Path to company_tickers.json")
	f.StringVar(&minDate, "min-date", "", "Minimum filing date YYYY-MM-DD (default 2023-10-01)")
	f.StringVar(&forms, "forms", "", "Comma-separated forms (default 10-K)")
	f.StringVar(&abPath, "ab", "", "AB manifest output (default manifest_ab.csv)")
	f.StringVar(&twoPath, "two", "", "TWO manifest output (default manifest_two.csv)")
	f.StringVar(&errorsPath, "errors", "", "Error log output (default manifest_errors.log)")
	f.StringVar(&userAgent, "ua", "", "User-Agent with contact info, per SEC guidance")
	f.DurationVar(&delay, "delay", 200*time.Millisecond, "Politeness delay after each company")
	_ = rootCmd.MarkFlagRequired("input")
	_ = rootCmd.MarkFlagRequired("tickers")
}

func applyFlags(cmd *cobra.Command) error {
	changed := cmd.Flags().Changed
	if changed("min-date") {
		cfg.Manifest.MinDate = minDate
	}
	if changed("forms") {
		var list []string
		for _, f := range strings.Split(forms, ",") {
			if f = strings.ToUpper(strings.TrimSpace(f)); f != "" {
				list = append(list, f)
			}
		}
		cfg.Manifest.Forms = list
	}
	if changed("ab") {
		cfg.Manifest.ABPath = abPath
	}
	if changed("two") {
		cfg.Manifest.TwoPath = twoPath
	}
	if changed("errors") {
		cfg.Manifest.ErrorsPath = errorsPath
	}
	if changed("ua") {
		cfg.HTTP.UserAgent = userAgent
	}
	if changed("delay") {
		cfg.Manifest.Delay = delay
	}
	return cfg.Validate()
}

func run(cmd *cobra.Command, args []string) error {
	companies, err := manifest.LoadCompanies(inputPath)
	if err != nil {
		return err
	}
	tickers, err := ingest.LoadTickerMap(tickersPath)
	if err != nil {
		return err
	}

	client := ingest.NewEDGARClient(cfg.HTTP)
	builder := manifest.NewBuilder(client, tickers, cfg.Manifest, logger)

	result := builder.Build(context.Background(), companies)
	if err := result.Write(cfg.Manifest); err != nil {
		return err
	}

	if len(result.Errors) > 0 {
		logger.Info("completed with warnings", zap.Int("warnings", len(result.Errors)), zap.String("log", cfg.Manifest.ErrorsPath))
	} else {
		logger.Info("completed with no warnings")
	}
	logger.Info("wrote manifests",
		zap.Int("ab_rows", len(result.AB)), zap.String("ab", cfg.Manifest.ABPath),
		zap.Int("two_rows", len(result.Two)), zap.String("two", cfg.Manifest.TwoPath),
	)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
