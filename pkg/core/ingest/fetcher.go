package ingest

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/models"
)

// DocumentFetcher downloads filing pages from SEC Archives.
type DocumentFetcher struct {
	client *resty.Client
}

// NewDocumentFetcher creates a fetcher sharing the identifying header and transport
// retry policy of the EDGAR client.
func NewDocumentFetcher(cfg config.HTTPConfig) *DocumentFetcher {
	return &DocumentFetcher{client: newRestyClient(cfg)}
}

// Fetch returns the body of url. Non-2xx responses wrap models.ErrNetwork.
func (f *DocumentFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	res, err := f.client.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", models.ErrNetwork, err)
	}
	if !res.IsSuccess() {
		return nil, fmt.Errorf("%w: SEC returned status %d for %s", models.ErrNetwork, res.StatusCode(), url)
	}
	return res.Body(), nil
}
