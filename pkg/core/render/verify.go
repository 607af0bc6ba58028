package render

import (
	"fmt"

	"github.com/gen2brain/go-fitz"

	"filing_tasks/pkg/models"
)

// PageVerifier opens rendered PDFs with MuPDF.
type PageVerifier struct{}

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, err
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// Verify fails with models.ErrIntegrity unless the file is a PDF with at least one page.
func (PageVerifier) Verify(path string) error {
	n, err := PageCount(path)
	if err != nil {
		return fmt.Errorf("%w: pdf_unreadable: %v", models.ErrIntegrity, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: pdf_unreadable: no pages", models.ErrIntegrity)
	}
	return nil
}
