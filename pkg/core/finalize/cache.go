package finalize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HTMLCache stores downloaded filing pages between runs, keyed by PDF filename.
type HTMLCache struct {
	dir string
}

// NewHTMLCache creates the cache directory if needed.
func NewHTMLCache(dir string) (*HTMLCache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create html cache %s: %w", dir, err)
	}
	return &HTMLCache{dir: dir}, nil
}

// Path returns the cache file for a PDF filename.
func (c *HTMLCache) Path(pdfName string) string {
	return filepath.Join(c.dir, strings.TrimSuffix(pdfName, ".pdf")+".html")
}

// Has checks if a page is cached.
func (c *HTMLCache) Has(pdfName string) bool {
	_, err := os.Stat(c.Path(pdfName))
	return err == nil
}

// Size returns the cached size in bytes, or 0 when missing.
func (c *HTMLCache) Size(pdfName string) int64 {
	info, err := os.Stat(c.Path(pdfName))
	if err != nil {
		return 0
	}
	return info.Size()
}

// Set stores a downloaded page.
func (c *HTMLCache) Set(pdfName string, body []byte) error {
	return os.WriteFile(c.Path(pdfName), body, 0644)
}

// Dir returns the cache directory path.
func (c *HTMLCache) Dir() string {
	return c.dir
}
