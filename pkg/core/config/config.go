// Package config holds the single configuration structure passed into every stage.
//
// Values are layered: built-in defaults, then an optional YAML file, then the
// environment (a local .env is loaded first). Command-line flags are applied last by
// the commands themselves.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"filing_tasks/pkg/models"
)

// DefaultUserAgent identifies the tool to SEC EDGAR, which requires a contact point.
const DefaultUserAgent = "TrialDataCollection/1.0 (contact@example.com)"

// DefaultBlockMarker is the text of the EDGAR page served to undeclared automated tools.
const DefaultBlockMarker = "Your Request Originates from an Undeclared Automated Tool"

// Config is the root configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Manifest ManifestConfig `yaml:"manifest"`
	Assemble AssembleConfig `yaml:"assemble"`
	Finalize FinalizeConfig `yaml:"finalize"`
	Render   RenderConfig   `yaml:"render"`
	Ledger   LedgerConfig   `yaml:"ledger"`
}

// HTTPConfig is shared by every outbound request.
type HTTPConfig struct {
	UserAgent  string        `yaml:"user_agent" env:"EDGAR_USER_AGENT"`
	Timeout    time.Duration `yaml:"timeout" env:"EDGAR_HTTP_TIMEOUT"`
	Retries    int           `yaml:"retries"`     // transport-level retries on 429/5xx
	RetryWait  time.Duration `yaml:"retry_wait"`  // first transport retry wait
	RetryLimit time.Duration `yaml:"retry_limit"` // cap on transport retry wait
}

// ManifestConfig drives the manifest builder.
type ManifestConfig struct {
	Forms      []string      `yaml:"forms"`
	MinDate    string        `yaml:"min_date"`
	Delay      time.Duration `yaml:"delay"` // politeness delay after each company fetch
	ABPath     string        `yaml:"ab_path"`
	TwoPath    string        `yaml:"two_path"`
	ErrorsPath string        `yaml:"errors_path"`
}

// AssembleConfig holds the per-category counts and paths of the task assembler.
type AssembleConfig struct {
	ABPath    string `yaml:"ab_path"`
	TwoPath   string `yaml:"two_path"`
	OutPath   string `yaml:"out_path"`
	XLSXPath  string `yaml:"xlsx_path"`
	ACount    int    `yaml:"a_count"`
	BCount    int    `yaml:"b_count"`
	YoYCount  int    `yaml:"yoy_count"`
	PeerCount int    `yaml:"peer_count"`
}

// FinalizeConfig drives the PDF finalizer.
type FinalizeConfig struct {
	OutDir          string        `yaml:"out_dir"`
	HTMLCacheDir    string        `yaml:"html_cache_dir"`
	FailureLogPath  string        `yaml:"failure_log_path"`
	SummaryPath     string        `yaml:"summary_path"`
	Overwrite       bool          `yaml:"overwrite"`
	OnlyMissing     bool          `yaml:"only_missing"`
	SleepMin        time.Duration `yaml:"sleep_min"`
	SleepMax        time.Duration `yaml:"sleep_max"`
	RetryStep       time.Duration `yaml:"retry_step"` // added per attempt to the backoff
	MaxFetchRetries int           `yaml:"max_fetch_retries"`
	MinHTMLBytes    int64         `yaml:"min_html_bytes"`
	BlockMarker     string        `yaml:"block_marker"`
	VerifyPDF       bool          `yaml:"verify_pdf"`
	Progress        bool          `yaml:"progress"`
}

// RenderConfig describes the PDF page layout and the browser to drive.
type RenderConfig struct {
	ChromeBin    string        `yaml:"chrome_bin" env:"CHROME_BIN"`
	PaperWidth   float64       `yaml:"paper_width"`  // inches
	PaperHeight  float64       `yaml:"paper_height"` // inches
	MarginInches float64       `yaml:"margin_inches"`
	Timeout      time.Duration `yaml:"timeout"`
	Locale       string        `yaml:"locale"`
}

// LedgerConfig selects where per-slot outcomes are recorded.
// DatabaseURL wins over SQLitePath; both empty disables the ledger.
type LedgerConfig struct {
	DatabaseURL string `yaml:"database_url" env:"DATABASE_URL"`
	SQLitePath  string `yaml:"sqlite_path" env:"FINALIZE_LEDGER_PATH"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			UserAgent:  DefaultUserAgent,
			Timeout:    60 * time.Second,
			Retries:    3,
			RetryWait:  500 * time.Millisecond,
			RetryLimit: 5 * time.Second,
		},
		Manifest: ManifestConfig{
			Forms:      []string{"10-K"},
			MinDate:    "2023-10-01",
			Delay:      200 * time.Millisecond,
			ABPath:     "manifest_ab.csv",
			TwoPath:    "manifest_two.csv",
			ErrorsPath: "manifest_errors.log",
		},
		Assemble: AssembleConfig{
			ABPath:    "manifest_ab.csv",
			TwoPath:   "manifest_two.csv",
			OutPath:   "tasks_master.csv",
			ACount:    40,
			BCount:    40,
			YoYCount:  10,
			PeerCount: 10,
		},
		Finalize: FinalizeConfig{
			HTMLCacheDir:    "html_cache",
			FailureLogPath:  "failed_rows.csv",
			SleepMin:        800 * time.Millisecond,
			SleepMax:        1400 * time.Millisecond,
			RetryStep:       600 * time.Millisecond,
			MaxFetchRetries: 2,
			MinHTMLBytes:    1024,
			BlockMarker:     DefaultBlockMarker,
			VerifyPDF:       true,
			Progress:        true,
		},
		Render: RenderConfig{
			PaperWidth:   8.27,
			PaperHeight:  11.69,
			MarginInches: 1,
			Timeout:      60 * time.Second,
			Locale:       "en-US",
		},
		Ledger: LedgerConfig{
			SQLitePath: "finalize_ledger.db",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (optional) and the
// environment. A missing .env is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("%w: failed to read .env: %v", models.ErrConfiguration, err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: failed to read config %s: %v", models.ErrConfiguration, path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: failed to parse config %s: %v", models.ErrConfiguration, path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: failed to parse environment: %v", models.ErrConfiguration, err)
	}

	return cfg, cfg.Validate()
}

// Validate normalizes derived values and rejects unusable settings.
func (c *Config) Validate() error {
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("%w: user agent must not be empty", models.ErrConfiguration)
	}
	if c.Finalize.SleepMax < c.Finalize.SleepMin {
		c.Finalize.SleepMax = c.Finalize.SleepMin
	}
	if c.Finalize.MaxFetchRetries < 0 {
		c.Finalize.MaxFetchRetries = 0
	}
	if c.Assemble.ACount < 0 || c.Assemble.BCount < 0 || c.Assemble.YoYCount < 0 || c.Assemble.PeerCount < 0 {
		return fmt.Errorf("%w: category counts must not be negative", models.ErrConfiguration)
	}
	return nil
}
