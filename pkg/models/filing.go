package models

import "strings"

// FilingRecord is one fetched filing as it appears in a manifest row.
type FilingRecord struct {
	Company       string `json:"company"`
	Ticker        string `json:"ticker"`
	Sector        string `json:"sector"`
	Form          string `json:"form"`             // "10-K", "10-K/A"
	Period        string `json:"period"`           // Report date, or filing year when absent
	FilingDate    string `json:"filing_date"`      // ISO date, e.g. "2024-11-01"
	Accession     string `json:"accession"`        // e.g. "0000320193-24-000123"
	EdgarIndexURL string `json:"edgar_index_url"`  // Filing index page
	OpenAsHTMLURL string `json:"open_as_html_url"` // Primary document page
}

// ManifestColumns is the column order of the AB and TWO manifest files.
// TaskID stays blank in manifests; the assembler assigns ids.
var ManifestColumns = []string{
	"TaskID", "Company", "Ticker", "Sector", "Form", "Period", "FilingDate",
	"Accession", "EdgarIndexURL", "OpenAsHTMLURL",
}

// ManifestRequiredColumns must be present when a manifest is read back.
// Period is optional and defaults to "".
var ManifestRequiredColumns = []string{
	"Company", "Ticker", "Sector", "Form", "FilingDate",
	"Accession", "EdgarIndexURL", "OpenAsHTMLURL",
}

// CompanyColumns must be present in the company list fed to the manifest builder.
var CompanyColumns = []string{"Company", "Ticker", "Sector"}

// Year returns the filing year (first four characters of FilingDate), or "".
func (r FilingRecord) Year() string {
	return YearOf(r.FilingDate)
}

// YearOf returns the first four characters of an ISO date, or "" when too short.
func YearOf(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}

// ManifestValues returns the record in ManifestColumns order.
func (r FilingRecord) ManifestValues() []string {
	return []string{
		"", r.Company, r.Ticker, r.Sector, r.Form, r.Period, r.FilingDate,
		r.Accession, r.EdgarIndexURL, r.OpenAsHTMLURL,
	}
}

// FilingFromFields builds a record from a column lookup. Missing columns read as "".
func FilingFromFields(get func(column string) string) FilingRecord {
	return FilingRecord{
		Company:       get("Company"),
		Ticker:        get("Ticker"),
		Sector:        get("Sector"),
		Form:          get("Form"),
		Period:        get("Period"),
		FilingDate:    get("FilingDate"),
		Accession:     get("Accession"),
		EdgarIndexURL: get("EdgarIndexURL"),
		OpenAsHTMLURL: get("OpenAsHTMLURL"),
	}
}

// Company is one line of the input company list.
type Company struct {
	Name   string
	Ticker string
	Sector string
}

// NormalizeCompany trims the fields and upper-cases the ticker.
func NormalizeCompany(name, ticker, sector string) Company {
	return Company{
		Name:   strings.TrimSpace(name),
		Ticker: strings.ToUpper(strings.TrimSpace(ticker)),
		Sector: strings.TrimSpace(sector),
	}
}
