// Package ingest provides SEC EDGAR API integration for fetching company filings.
// API Documentation: https://www.sec.gov/developer
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"

	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/models"
)

const (
	// SEC EDGAR endpoints
	SECDataBaseURL    = "https://data.sec.gov"
	SECSubmissionsURL = "/submissions/CIK%s.json"
	SECArchiveURL     = "https://www.sec.gov/Archives/edgar/data/%d/%s/%s"
)

// =============================================================================
// SEC EDGAR DATA TYPES
// =============================================================================

// Submissions is the subset of the submissions response the manifest needs.
type Submissions struct {
	Name    string     `json:"name"`
	Tickers []string   `json:"tickers"`
	Filings SECFilings `json:"filings"`
}

// SECFilings contains the recent filing list.
type SECFilings struct {
	Recent SECRecentFilings `json:"recent"`
}

// SECRecentFilings holds arrays of filing attributes (parallel arrays).
type SECRecentFilings struct {
	AccessionNumber []string `json:"accessionNumber"` // e.g., "0000037996-24-000012"
	FilingDate      []string `json:"filingDate"`      // e.g., "2024-02-06"
	ReportDate      []string `json:"reportDate"`      // Fiscal period end, may be ""
	Form            []string `json:"form"`            // "10-K", "10-Q", "8-K"
	PrimaryDocument []string `json:"primaryDocument"` // filename
}

// Selection is one filing picked from the parallel arrays.
type Selection struct {
	Form            string
	FilingDate      string
	Accession       string
	Period          string
	PrimaryDocument string
}

// =============================================================================
// SEC EDGAR CLIENT
// =============================================================================

// EDGARClient handles SEC EDGAR API requests.
type EDGARClient struct {
	client *resty.Client
}

// NewEDGARClient creates a client that identifies itself with cfg.UserAgent and
// retries 429 and 5xx responses at the transport level.
func NewEDGARClient(cfg config.HTTPConfig) *EDGARClient {
	return &EDGARClient{client: newRestyClient(cfg).SetBaseURL(SECDataBaseURL)}
}

// WithBaseURL points the client at another host (used by tests).
func (c *EDGARClient) WithBaseURL(baseURL string) *EDGARClient {
	c.client.SetBaseURL(baseURL)
	return c
}

func newRestyClient(cfg config.HTTPConfig) *resty.Client {
	return resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", cfg.UserAgent).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryLimit).
		AddRetryCondition(func(res *resty.Response, err error) bool {
			if err != nil || res == nil {
				return false
			}
			switch res.StatusCode() {
			case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
				http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				return true
			}
			return false
		})
}

// FetchSubmissions retrieves company submission data from SEC EDGAR.
//
// CIK is zero-padded to 10 digits if needed.
func (c *EDGARClient) FetchSubmissions(ctx context.Context, cik string) (*Submissions, error) {
	res, err := c.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(fmt.Sprintf(SECSubmissionsURL, PadCIK(cik)))
	if err != nil {
		return nil, fmt.Errorf("%w: SEC API request failed: %v", models.ErrNetwork, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w: SEC API returned status %d", models.ErrNetwork, res.StatusCode())
	}

	var sub Submissions
	if err := json.Unmarshal(res.Body(), &sub); err != nil {
		return nil, fmt.Errorf("%w: failed to parse SEC response: %v", models.ErrNetwork, err)
	}
	return &sub, nil
}

// SelectFilings scans the recent filings in source order and keeps those whose form is
// in forms and whose filing date is on or after minDate, stopping at maxCount.
// Arrays of unequal length are truncated to the shortest.
func SelectFilings(sub *Submissions, forms map[string]bool, minDate string, maxCount int) []Selection {
	if sub == nil || maxCount <= 0 {
		return nil
	}
	recent := sub.Filings.Recent
	n := minLen(len(recent.Form), len(recent.FilingDate), len(recent.AccessionNumber),
		len(recent.ReportDate), len(recent.PrimaryDocument))

	picks := make([]Selection, 0, maxCount)
	for i := 0; i < n; i++ {
		if !forms[recent.Form[i]] {
			continue
		}
		filingDate := recent.FilingDate[i]
		if filingDate == "" || filingDate < minDate {
			continue
		}

		period := recent.ReportDate[i]
		if period == "" {
			period = models.YearOf(filingDate)
		}

		picks = append(picks, Selection{
			Form:            recent.Form[i],
			FilingDate:      filingDate,
			Accession:       recent.AccessionNumber[i],
			Period:          period,
			PrimaryDocument: recent.PrimaryDocument[i],
		})
		if len(picks) >= maxCount {
			break
		}
	}
	return picks
}

func minLen(lengths ...int) int {
	m := lengths[0]
	for _, l := range lengths[1:] {
		if l < m {
			m = l
		}
	}
	return m
}

// FormSet upper-cases a comma-separated (or pre-split) form list into a lookup set.
func FormSet(forms []string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range forms {
		for _, part := range strings.Split(f, ",") {
			part = strings.ToUpper(strings.TrimSpace(part))
			if part != "" {
				set[part] = true
			}
		}
	}
	return set
}

// =============================================================================
// URL DERIVATION
// =============================================================================

// IndexURL returns the EDGAR filing index page.
// Format: https://www.sec.gov/Archives/edgar/data/{cik}/{acc-no-dashes}/{acc-no-dashes}-index.html
func IndexURL(cik, accession string) string {
	acc := strings.ReplaceAll(accession, "-", "")
	return fmt.Sprintf(SECArchiveURL, cikNumber(cik), acc, acc+"-index.html")
}

// DocumentURL returns the primary document of a filing.
// Format: https://www.sec.gov/Archives/edgar/data/{cik}/{acc-no-dashes}/{document}
func DocumentURL(cik, accession, primaryDocument string) string {
	acc := strings.ReplaceAll(accession, "-", "")
	return fmt.Sprintf(SECArchiveURL, cikNumber(cik), acc, primaryDocument)
}

func cikNumber(cik string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(cik), 10, 64)
	return n
}

// PadCIK zero-pads a CIK to 10 digits.
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if n, err := strconv.ParseInt(cik, 10, 64); err == nil {
		return fmt.Sprintf("%010d", n)
	}
	return fmt.Sprintf("%010s", cik)
}
