package finalize

import (
	"fmt"
	"os"
	"strings"
	"time"

	"filing_tasks/pkg/core/utils"
)

// Failure is one failed slot of a run.
type Failure struct {
	TaskID string
	Slot   int
	URL    string
	Reason string
}

// Summary aggregates slot outcomes for one run.
type Summary struct {
	RunID    string
	Input    string
	Output   string
	Rows     int
	Counts   map[SlotStatus]int
	Failures []Failure
	Started  time.Time
	Finished time.Time
}

func newSummary(runID, input, output string, started time.Time) *Summary {
	return &Summary{
		RunID:   runID,
		Input:   input,
		Output:  output,
		Counts:  make(map[SlotStatus]int),
		Started: started,
	}
}

// Add counts one finished slot.
func (s *Summary) Add(slot *Slot) {
	s.Counts[slot.Status]++
	if slot.Status == StatusFailed {
		s.Failures = append(s.Failures, Failure{TaskID: slot.TaskID, Slot: slot.Index, URL: slot.URL, Reason: slot.Reason})
	}
}

// Markdown renders the summary as a report.
func (s *Summary) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Finalize run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "- Input: `%s`\n", s.Input)
	fmt.Fprintf(&b, "- Output: `%s`\n", s.Output)
	fmt.Fprintf(&b, "- Rows: %d\n", s.Rows)
	if !s.Finished.IsZero() {
		fmt.Fprintf(&b, "- Duration: %s\n", s.Finished.Sub(s.Started).Round(time.Second))
	}

	b.WriteString("\n## Slots\n\n| Status | Count |\n|---|---|\n")
	for _, st := range []SlotStatus{StatusDone, StatusSkipped, StatusFailed} {
		fmt.Fprintf(&b, "| %s | %d |\n", st, s.Counts[st])
	}

	if len(s.Failures) > 0 {
		b.WriteString("\n## Failures\n\n| TaskID | Slot | Reason | URL |\n|---|---|---|---|\n")
		for _, f := range s.Failures {
			fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", f.TaskID, f.Slot, f.Reason, f.URL)
		}
	}
	return b.String()
}

// WriteHTML renders the Markdown report to an HTML page at path.
func (s *Summary) WriteHTML(path string) error {
	page, err := utils.RenderHTML("Finalize run "+s.RunID, s.Markdown())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, page, 0644); err != nil {
		return fmt.Errorf("failed to write summary %s: %w", path, err)
	}
	return nil
}
