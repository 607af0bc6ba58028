package finalize

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  AAPL ", want: "AAPL"},
		{in: "10-K/A", want: "10-KA"},
		{in: `a\b:c*d?e"f<g>h|i`, want: "abcdefghi"},
		{in: "Berkshire Hathaway\tInc.\n", want: "BerkshireHathawayInc."},
		{in: "", want: ""},
		{in: strings.Repeat("é", 200), want: strings.Repeat("é", MaxNameRunes)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}

func TestFilename(t *testing.T) {
	row := map[string]string{
		"TaskID": "C_PEER_01", "Ticker_1": "AAPL", "Form_1": "10-K", "Period_1": "2024-09-28", "FilingDate_1": "2024-11-01",
		"Ticker_2": "MSFT", "Form_2": "10-K/A", "FilingDate_2": "2024-07-30",
	}
	get := func(c string) string { return row[c] }

	assert.Equal(t, "C_PEER_01_AAPL_10-K_2024-09-28_2024-11-01.pdf", Filename(get, 0, 1))
	assert.Equal(t, "C_PEER_01_MSFT_10-KA_2024-07-30_doc2.pdf", Filename(get, 0, 2))

	empty := func(string) string { return "" }
	assert.Equal(t, "row_7.pdf", Filename(empty, 7, 1))
	assert.Equal(t, "doc2.pdf", Filename(empty, 7, 2))

	long := func(c string) string { return strings.Repeat("x/", 120) }
	name := Filename(long, 0, 1)
	assert.True(t, strings.HasSuffix(name, ".pdf"))
	assert.LessOrEqual(t, utf8.RuneCountInString(name), MaxNameRunes+len(".pdf"))
	assert.NotContains(t, name, "/")
}

func TestCleanURL(t *testing.T) {
	assert.Equal(t, "", CleanURL(""))
	assert.Equal(t, "", CleanURL("   "))
	assert.Equal(t, "", CleanURL("NaN"))
	assert.Equal(t, "https://sec.test/a", CleanURL(" https://sec.test/a "))
}

func TestIsBlocked(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{name: "plain marker", body: "<p>Your Request Originates from an Undeclared Automated Tool</p>", want: true},
		{name: "different case", body: "YOUR REQUEST ORIGINATES FROM AN UNDECLARED AUTOMATED TOOL", want: true},
		{name: "split by markup", body: blockPage, want: true},
		{name: "normal filing", body: string(filingPage("10-K")), want: false},
		{name: "empty", body: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlocked([]byte(tt.body), "Your Request Originates from an Undeclared Automated Tool"))
		})
	}
	assert.False(t, IsBlocked([]byte("anything"), ""))
}

func TestSlotStatus(t *testing.T) {
	assert.Equal(t, "done", StatusDone.String())
	assert.Equal(t, "unknown", SlotStatus(42).String())

	s := &Slot{Status: StatusPending}
	s.advance(StatusDownloading)
	s.fail(ReasonDownloadFailed, nil)
	s.advance(StatusDone)
	assert.Equal(t, StatusFailed, s.Status, "terminal states do not change")
	assert.Equal(t, ReasonDownloadFailed, s.Reason)
}
