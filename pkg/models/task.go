package models

import "fmt"

// Category labels a task row. The C subtype lives inside the label.
type Category string

const (
	CategoryA    Category = "A"
	CategoryB    Category = "B"
	CategoryYoY  Category = "C (YoY)"
	CategoryPeer Category = "C (Peer)"
)

// TaskID prefixes per category.
const (
	PrefixA    = "A"
	PrefixB    = "B"
	PrefixYoY  = "C_YOY"
	PrefixPeer = "C_PEER"
)

// FormatTaskID renders "<PREFIX>_<NN>" with a 1-based, zero-padded sequence.
func FormatTaskID(prefix string, seq int) string {
	return fmt.Sprintf("%s_%02d", prefix, seq)
}

// MasterColumns is the fixed column order of the master task table.
var MasterColumns = []string{
	"TaskID", "Status", "TaskerName", "Category", "Prompt", "Answer", "SupportingFacts",
	"QA_Reviewer", "QA_Approval", "QA_Final_Approval", "Notes",
	"Company_1", "Ticker_1", "Sector_1", "Form_1", "Period_1", "FilingDate_1",
	"Company_2", "Ticker_2", "Sector_2", "Form_2", "Period_2", "FilingDate_2",
	"Accession_1", "EdgarIndexURL_1", "OpenAsHTMLURL_1", "PDF_filename_1", "PDF_checksum_1", "PDF_link_1",
	"Accession_2", "EdgarIndexURL_2", "OpenAsHTMLURL_2", "PDF_filename_2", "PDF_checksum_2", "PDF_link_2",
}

// ReviewFields are filled in by human reviewers and never touched by this tool.
type ReviewFields struct {
	Status          string
	TaskerName      string
	Prompt          string
	Answer          string
	SupportingFacts string
	QAReviewer      string
	QAApproval      string
	QAFinalApproval string
	Notes           string
}

// PDFFields record the rendered artifact for one slot.
type PDFFields struct {
	Filename string
	Checksum string
	Link     string
}

// TaskRow is one reviewable unit. Category A/B rows fill only the first slot;
// C rows fill both.
type TaskRow struct {
	TaskID   string
	Category Category
	Review   ReviewFields

	First  FilingRecord
	Second *FilingRecord

	FirstPDF  PDFFields
	SecondPDF PDFFields
}

// NewSingleTask builds an A or B row.
func NewSingleTask(taskID string, cat Category, r FilingRecord) TaskRow {
	return TaskRow{TaskID: taskID, Category: cat, First: r}
}

// NewPairTask builds a C (YoY) or C (Peer) row.
func NewPairTask(taskID string, cat Category, r1, r2 FilingRecord) TaskRow {
	second := r2
	return TaskRow{TaskID: taskID, Category: cat, First: r1, Second: &second}
}

// Values returns the row in MasterColumns order.
func (t TaskRow) Values() []string {
	var s FilingRecord
	if t.Second != nil {
		s = *t.Second
	}
	f := t.First
	rv := t.Review

	return []string{
		t.TaskID, rv.Status, rv.TaskerName, string(t.Category), rv.Prompt, rv.Answer, rv.SupportingFacts,
		rv.QAReviewer, rv.QAApproval, rv.QAFinalApproval, rv.Notes,
		f.Company, f.Ticker, f.Sector, f.Form, f.Period, f.FilingDate,
		s.Company, s.Ticker, s.Sector, s.Form, s.Period, s.FilingDate,
		f.Accession, f.EdgarIndexURL, f.OpenAsHTMLURL, t.FirstPDF.Filename, t.FirstPDF.Checksum, t.FirstPDF.Link,
		s.Accession, s.EdgarIndexURL, s.OpenAsHTMLURL, t.SecondPDF.Filename, t.SecondPDF.Checksum, t.SecondPDF.Link,
	}
}

// SlotColumn returns the per-slot column name, e.g. SlotColumn("Ticker", 2) = "Ticker_2".
func SlotColumn(base string, slot int) string {
	return fmt.Sprintf("%s_%d", base, slot)
}
