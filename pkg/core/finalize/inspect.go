package finalize

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// IsBlocked reports whether body is the EDGAR page served to undeclared automated
// tools. The marker is matched case-insensitively against the raw markup and against
// the whitespace-normalized title and body text, so markup inside the sentence does
// not hide it.
func IsBlocked(body []byte, marker string) bool {
	needle := strings.ToLower(strings.Join(strings.Fields(marker), " "))
	if needle == "" {
		return false
	}
	if bytes.Contains(bytes.ToLower(body), []byte(strings.ToLower(marker))) {
		return true
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	text := doc.Find("title").Text() + " " + doc.Find("body").Text()
	text = strings.ToLower(strings.Join(strings.Fields(text), " "))
	return strings.Contains(text, needle)
}
