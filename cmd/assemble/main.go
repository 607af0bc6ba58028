// Command assemble builds the master task table from the AB and TWO manifests.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"filing_tasks/pkg/core/assemble"
	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/core/logging"
)

var (
	configPath string
	debug      bool
	abPath     string
	twoPath    string
	outPath    string
	xlsxPath   string
	aCount     int
	bCount     int
	yoyCount   int
	peerCount  int

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "assemble",
	Short:         "Assemble the master tasks CSV (A, B, C (YoY), C (Peer)) from manifest files",
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
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := assemble.Run(cfg.Assemble, logger)
		return err
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "YAML config file")
	f.BoolVar(&debug, "debug", false, "Verbose logging")
	f.StringVar(&abPath, "ab", "", "AB manifest (default manifest_ab.csv)")
	f.StringVar(&twoPath, "two", "", "TWO manifest (default manifest_two.csv)")
	f.StringVar(&outPath, "out", "", "Master table output (default tasks_master.csv)")
	f.StringVar(&xlsxPath, "xlsx", "", "Also write the master table as an Excel workbook")
	f.IntVar(&aCount, "a-count", 40, "Category A rows")
	f.IntVar(&bCount, "b-count", 40, "Category B rows")
	f.IntVar(&yoyCount, "c-yoy-count", 10, "Category C (YoY) rows")
	f.IntVar(&peerCount, "c-peer-count", 10, "Category C (Peer) rows")
}

func applyFlags(cmd *cobra.Command) {
	changed := cmd.Flags().Changed
	if changed("ab") {
		cfg.Assemble.ABPath = abPath
	}
	if changed("two") {
		cfg.Assemble.TwoPath = twoPath
	}
	if changed("out") {
		cfg.Assemble.OutPath = outPath
	}
	if changed("xlsx") {
		cfg.Assemble.XLSXPath = xlsxPath
	}
	if changed("a-count") {
		cfg.Assemble.ACount = aCount
	}
	if changed("b-count") {
		cfg.Assemble.BCount = bCount
	}
	if changed("c-yoy-count") {
		cfg.Assemble.YoYCount = yoyCount
	}
	if changed("c-peer-count") {
		cfg.Assemble.PeerCount = peerCount
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
