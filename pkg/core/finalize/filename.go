package finalize

import (
	"fmt"
	"regexp"
	"strings"

	"filing_tasks/pkg/models"
)

// MaxNameRunes caps each filename component and the joined base name.
const MaxNameRunes = 150

var unsafeFilenameChars = regexp.MustCompile(`[\\/:*?"<>|]`)

// Sanitize drops all whitespace and path-unsafe characters and caps the length.
func Sanitize(value string) string {
	s := strings.Join(strings.Fields(value), "")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	return truncateRunes(s, MaxNameRunes)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Filename derives the PDF name for a slot from TaskID, Ticker_n, Form_n, Period_n and
// FilingDate_n. Slot 2 gets a "doc2" suffix. Rows with nothing usable fall back to
// row_<rowIndex>.
func Filename(get func(column string) string, rowIndex, slot int) string {
	candidates := []string{
		Sanitize(get("TaskID")),
		Sanitize(get(models.SlotColumn("Ticker", slot))),
		Sanitize(get(models.SlotColumn("Form", slot))),
		Sanitize(get(models.SlotColumn("Period", slot))),
		Sanitize(get(models.SlotColumn("FilingDate", slot))),
	}
	if slot == 2 {
		candidates = append(candidates, "doc2")
	}

	var parts []string
	for _, p := range candidates {
		if p != "" {
			parts = append(parts, p)
		}
	}

	base := strings.Join(parts, "_")
	if base == "" {
		base = fmt.Sprintf("row_%d", rowIndex)
	}
	return truncateRunes(base, MaxNameRunes) + ".pdf"
}

// CleanURL trims value; blank and "nan" (any case) mean no URL.
func CleanURL(value string) string {
	s := strings.TrimSpace(value)
	if s == "" || strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}
