// Package manifest turns a company list into the AB and TWO filing manifests.
package manifest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/core/ingest"
	"filing_tasks/pkg/core/table"
	"filing_tasks/pkg/models"
)

// SubmissionsFetcher is the slice of the EDGAR client the builder needs.
type SubmissionsFetcher interface {
	FetchSubmissions(ctx context.Context, cik string) (*ingest.Submissions, error)
}

// CIKLookup resolves a ticker to a 10-digit CIK.
type CIKLookup interface {
	Lookup(ticker string) (string, bool)
}

// Result holds both manifests and the per-company failures, in input order.
type Result struct {
	AB     []models.FilingRecord
	Two    []models.FilingRecord
	Errors []string
}

// Builder walks the company list and selects filings for each company.
type Builder struct {
	fetcher SubmissionsFetcher
	tickers CIKLookup
	forms   map[string]bool
	minDate string
	delay   time.Duration
	logger  *zap.Logger

	// Sleep is the politeness delay hook, replaced in tests.
	Sleep func(time.Duration)
}

// NewBuilder creates a builder for the forms and date floor in cfg.
func NewBuilder(fetcher SubmissionsFetcher, tickers CIKLookup, cfg config.ManifestConfig, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		fetcher: fetcher,
		tickers: tickers,
		forms:   ingest.FormSet(cfg.Forms),
		minDate: cfg.MinDate,
		delay:   cfg.Delay,
		logger:  logger,
		Sleep:   time.Sleep,
	}
}

// Build fetches submissions once per mapped company and selects up to one filing for
// AB and up to two for TWO. Mapping and fetch failures are collected, never fatal.
func (b *Builder) Build(ctx context.Context, companies []models.Company) *Result {
	result := &Result{}

	for _, c := range companies {
		cik, ok := b.tickers.Lookup(c.Ticker)
		if !ok || cik == "" {
			msg := fmt.Sprintf("No CIK mapping for %s", c.Ticker)
			b.logger.Warn("skipping company", zap.String("ticker", c.Ticker), zap.Error(fmt.Errorf("%w: %s", models.ErrMapping, msg)))
			result.Errors = append(result.Errors, msg)
			continue
		}

		sub, err := b.fetcher.FetchSubmissions(ctx, cik)
		if err != nil {
			msg := fmt.Sprintf("Error for %s (cik %s): %v", c.Ticker, cik, err)
			b.logger.Warn("fetch failed", zap.String("ticker", c.Ticker), zap.String("cik", cik), zap.Error(err))
			result.Errors = append(result.Errors, msg)
		} else {
			for _, pick := range ingest.SelectFilings(sub, b.forms, b.minDate, 1) {
				result.AB = append(result.AB, toRecord(c, cik, pick))
			}
			for _, pick := range ingest.SelectFilings(sub, b.forms, b.minDate, 2) {
				result.Two = append(result.Two, toRecord(c, cik, pick))
			}
			b.logger.Debug("fetched submissions", zap.String("ticker", c.Ticker), zap.String("cik", cik))
		}

		if b.delay > 0 {
			b.Sleep(b.delay)
		}
	}

	return result
}

func toRecord(c models.Company, cik string, pick ingest.Selection) models.FilingRecord {
	return models.FilingRecord{
		Company:       c.Name,
		Ticker:        c.Ticker,
		Sector:        c.Sector,
		Form:          pick.Form,
		Period:        pick.Period,
		FilingDate:    pick.FilingDate,
		Accession:     pick.Accession,
		EdgarIndexURL: ingest.IndexURL(cik, pick.Accession),
		OpenAsHTMLURL: ingest.DocumentURL(cik, pick.Accession, pick.PrimaryDocument),
	}
}

// LoadCompanies reads the company list CSV (Company, Ticker, Sector).
func LoadCompanies(path string) ([]models.Company, error) {
	t, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(models.CompanyColumns...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	companies := make([]models.Company, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		companies = append(companies, models.NormalizeCompany(t.Get(i, "Company"), t.Get(i, "Ticker"), t.Get(i, "Sector")))
	}
	return companies, nil
}

// WriteManifest stores records with the manifest column layout.
func WriteManifest(path string, records []models.FilingRecord) error {
	t := table.New(models.ManifestColumns)
	for _, r := range records {
		t.Append(r.ManifestValues())
	}
	return t.Write(path)
}

// ReadManifest loads a manifest written by WriteManifest (or by hand).
func ReadManifest(path string) ([]models.FilingRecord, error) {
	t, err := table.Read(path)
	if err != nil {
		return nil, err
	}
	if err := t.Require(models.ManifestRequiredColumns...); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	records := make([]models.FilingRecord, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		records = append(records, models.FilingFromFields(t.Getter(i)))
	}
	return records, nil
}

// Write stores both manifests and, only when failures occurred, the error log.
func (r *Result) Write(cfg config.ManifestConfig) error {
	if err := WriteManifest(cfg.ABPath, r.AB); err != nil {
		return err
	}
	if err := WriteManifest(cfg.TwoPath, r.Two); err != nil {
		return err
	}
	if len(r.Errors) == 0 || cfg.ErrorsPath == "" {
		return nil
	}
	if err := os.WriteFile(cfg.ErrorsPath, []byte(strings.Join(r.Errors, "\n")+"\n"), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.ErrorsPath, err)
	}
	return nil
}
