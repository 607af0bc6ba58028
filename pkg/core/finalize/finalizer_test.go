package finalize

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/core/store"
	"filing_tasks/pkg/core/table"
	"filing_tasks/pkg/models"
)

// --- Mocks ---

type MockDownloader struct {
	FetchFunc func(ctx context.Context, url string) ([]byte, error)
	calls     map[string]int
}

func (m *MockDownloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[url]++
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx, url)
	}
	return filingPage("default"), nil
}

func (m *MockDownloader) total() int {
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

type MockRenderer struct {
	RenderFileFunc func(ctx context.Context, htmlPath, pdfPath string) error
	calls          int
}

func (m *MockRenderer) RenderFile(ctx context.Context, htmlPath, pdfPath string) error {
	m.calls++
	if m.RenderFileFunc != nil {
		return m.RenderFileFunc(ctx, htmlPath, pdfPath)
	}
	html, err := os.ReadFile(htmlPath)
	if err != nil {
		return err
	}
	return os.WriteFile(pdfPath, append([]byte("%PDF-1.4 "), html[:16]...), 0644)
}

type MockLedger struct {
	outcomes []store.Outcome
}

func (m *MockLedger) Record(ctx context.Context, o store.Outcome) error {
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *MockLedger) Close() error { return nil }

type MockVerifier struct {
	VerifyFunc func(path string) error
}

func (m *MockVerifier) Verify(path string) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(path)
	}
	return nil
}

// --- Helpers ---

func filingPage(label string) []byte {
	return []byte("<html><head><title>" + label + "</title></head><body>" + strings.Repeat("Annual report text. ", 100) + "</body></html>")
}

const blockPage = `<html><head><title>SEC.gov | Request Rate Threshold Exceeded</title></head>
<body><h1>Your Request Originates from an
<b>Undeclared</b> Automated Tool</h1><p>Please declare your traffic.</p></body></html>`

func testConfig(dir string) config.FinalizeConfig {
	return config.FinalizeConfig{
		OutDir:          filepath.Join(dir, "pdfs"),
		HTMLCacheDir:    filepath.Join(dir, "html_cache"),
		FailureLogPath:  filepath.Join(dir, "failed_rows.csv"),
		SleepMin:        800 * time.Millisecond,
		SleepMax:        1400 * time.Millisecond,
		RetryStep:       600 * time.Millisecond,
		MaxFetchRetries: 2,
		MinHTMLBytes:    1024,
		BlockMarker:     config.DefaultBlockMarker,
		VerifyPDF:       true,
	}
}

func newTestFinalizer(cfg config.FinalizeConfig, d Downloader, r Renderer) (*Finalizer, *[]time.Duration) {
	var slept []time.Duration
	f := New(cfg, d, r, nil)
	f.Sleep = func(d time.Duration) { slept = append(slept, d) }
	f.Rand = func() float64 { return 0.5 }
	f.Now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return f, &slept
}

func writeTasks(t *testing.T, path string, columns []string, rows ...[]string) {
	t.Helper()
	tbl := table.New(columns)
	for _, r := range rows {
		tbl.Append(r)
	}
	require.NoError(t, tbl.Write(path))
}

var taskColumns = []string{
	"TaskID", "ReviewerNote", "Ticker_1", "Form_1", "Period_1", "FilingDate_1", "OpenAsHTMLURL_1",
	"Ticker_2", "Form_2", "Period_2", "FilingDate_2", "OpenAsHTMLURL_2",
}

func readFailures(t *testing.T, path string) [][]string {
	t.Helper()
	tbl, err := table.Read(path)
	require.NoError(t, err)
	require.Equal(t, []string{"TaskID", "URL", "Reason"}, tbl.Columns)
	return tbl.Rows
}

// --- Tests ---

func TestRun_SlotOutcomes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tasks_master.csv")
	writeTasks(t, input, taskColumns,
		[]string{"C_YOY_01", "keep", "AAPL", "10-K", "2024-09-28", "2024-11-01", "https://sec.test/good1", "AAPL", "10-K", "2023-09-30", "2023-11-03", "https://sec.test/good2"},
		[]string{"A_01", "", "MSFT", "10-K", "", "2024-07-30", "https://sec.test/blocked", "", "", "", "", "nan"},
		[]string{"A_02", "", "XOM", "10-K", "", "2024-02-28", "https://sec.test/tiny", "", "", "", "", ""},
		[]string{"A_03", "", "CVX", "10-K", "", "2024-02-26", "https://sec.test/norender", "", "", "", "", " "},
	)
	before, err := os.ReadFile(input)
	require.NoError(t, err)

	downloader := &MockDownloader{FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
		switch url {
		case "https://sec.test/blocked":
			return []byte(blockPage), nil
		case "https://sec.test/tiny":
			return []byte("<html>tiny</html>"), nil
		}
		return filingPage(url), nil
	}}
	renderer := &MockRenderer{}
	renderer.RenderFileFunc = func(ctx context.Context, htmlPath, pdfPath string) error {
		if strings.Contains(htmlPath, "A_03") {
			return fmt.Errorf("%w: chrome crashed", models.ErrRender)
		}
		return os.WriteFile(pdfPath, []byte("%PDF-1.4 "+filepath.Base(pdfPath)), 0644)
	}
	ledger := &MockLedger{}

	cfg := testConfig(dir)
	f, slept := newTestFinalizer(cfg, downloader, renderer)
	f.Ledger = ledger
	f.Verifier = &MockVerifier{}

	summary, err := f.Run(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Counts[StatusDone])
	assert.Equal(t, 3, summary.Counts[StatusSkipped])
	assert.Equal(t, 3, summary.Counts[StatusFailed])
	assert.Len(t, ledger.outcomes, 8)
	assert.NotEmpty(t, summary.RunID)

	// Input untouched, output next to it.
	after, err := os.ReadFile(input)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(before, after))
	assert.Equal(t, filepath.Join(dir, "tasks_master_finalized_offline.csv"), summary.Output)

	out, err := table.Read(summary.Output)
	require.NoError(t, err)
	assert.Equal(t, append(append([]string(nil), taskColumns...), "PDF_filename_1", "PDF_checksum_1", "PDF_filename_2", "PDF_checksum_2"), out.Columns)
	assert.Equal(t, "keep", out.Get(0, "ReviewerNote"))
	assert.Equal(t, "C_YOY_01_AAPL_10-K_2024-09-28_2024-11-01.pdf", out.Get(0, "PDF_filename_1"))
	assert.Equal(t, "C_YOY_01_AAPL_10-K_2023-09-30_2023-11-03_doc2.pdf", out.Get(0, "PDF_filename_2"))
	assert.Len(t, out.Get(0, "PDF_checksum_1"), 64)
	assert.NotEqual(t, out.Get(0, "PDF_checksum_1"), out.Get(0, "PDF_checksum_2"))
	for row := 1; row < 4; row++ {
		assert.Empty(t, out.Get(row, "PDF_filename_1"))
		assert.Empty(t, out.Get(row, "PDF_checksum_1"))
	}

	_, err = os.Stat(filepath.Join(cfg.OutDir, "C_YOY_01_AAPL_10-K_2024-09-28_2024-11-01.pdf"))
	assert.NoError(t, err)

	assert.Equal(t, [][]string{
		{"A_01", "https://sec.test/blocked", ReasonDownloadFailed},
		{"A_02", "https://sec.test/tiny", "html_too_small(17)"},
		{"A_03", "https://sec.test/norender", ReasonRenderFailed},
	}, readFailures(t, cfg.FailureLogPath))

	// Blocked: three attempts, never cached.
	assert.Equal(t, 3, downloader.calls["https://sec.test/blocked"])
	_, err = os.Stat(filepath.Join(cfg.HTMLCacheDir, "A_01_MSFT_10-K_2024-07-30.html"))
	assert.True(t, os.IsNotExist(err))

	// Backoff grows by RetryStep per attempt; fresh downloads get a politeness delay.
	assert.Contains(t, *slept, 1100*time.Millisecond+600*time.Millisecond)
	assert.Contains(t, *slept, 1100*time.Millisecond+1200*time.Millisecond)
	assert.Equal(t, 4+2, len(*slept), "4 fresh downloads plus 2 retry waits")
}

func TestRun_OnlyMissingIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tasks.csv")
	writeTasks(t, input, taskColumns,
		[]string{"A_01", "", "AAPL", "10-K", "", "2024-11-01", "https://sec.test/a", "", "", "", "", ""},
		[]string{"A_02", "", "MSFT", "10-K", "", "2024-07-30", "https://sec.test/b", "", "", "", "", ""},
	)

	cfg := testConfig(dir)
	cfg.OnlyMissing = true

	downloader := &MockDownloader{}
	renderer := &MockRenderer{}
	f, _ := newTestFinalizer(cfg, downloader, renderer)

	first, err := f.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Counts[StatusDone])
	assert.Equal(t, 2, downloader.total())
	assert.Equal(t, 2, renderer.calls)

	second, err := f.Run(context.Background(), first.Output)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Counts[StatusDone])
	assert.Equal(t, 4, second.Counts[StatusSkipped])
	assert.Equal(t, 2, downloader.total(), "no new downloads")
	assert.Equal(t, 2, renderer.calls, "no new renders")

	out, err := table.Read(second.Output)
	require.NoError(t, err)
	assert.Equal(t, "A_01_AAPL_10-K_2024-11-01.pdf", out.Get(0, "PDF_filename_1"))
}

func TestRun_ReusesCacheUnlessOverwrite(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tasks.csv")
	writeTasks(t, input, taskColumns,
		[]string{"B_01", "", "AAPL", "10-K", "", "2024-11-01", "https://sec.test/a", "", "", "", "", ""},
	)

	cfg := testConfig(dir)
	cache, err := NewHTMLCache(cfg.HTMLCacheDir)
	require.NoError(t, err)
	require.NoError(t, cache.Set("B_01_AAPL_10-K_2024-11-01.pdf", filingPage("cached")))

	downloader := &MockDownloader{}
	f, slept := newTestFinalizer(cfg, downloader, &MockRenderer{})
	summary, err := f.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[StatusDone])
	assert.Equal(t, 0, downloader.total())
	assert.Empty(t, *slept)

	cfg.Overwrite = true
	f, _ = newTestFinalizer(cfg, downloader, &MockRenderer{})
	_, err = f.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, downloader.total())
}

func TestRun_RetriesAfterBlockThenSucceeds(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tasks.csv")
	writeTasks(t, input, taskColumns,
		[]string{"A_01", "", "AAPL", "10-K", "", "2024-11-01", "https://sec.test/a", "", "", "", "", ""},
	)

	attempts := 0
	downloader := &MockDownloader{FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
		attempts++
		switch attempts {
		case 1:
			return []byte(blockPage), nil
		case 2:
			return nil, fmt.Errorf("%w: status 503", models.ErrNetwork)
		}
		return filingPage("ok"), nil
	}}

	f, slept := newTestFinalizer(testConfig(dir), downloader, &MockRenderer{})
	summary, err := f.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[StatusDone])
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{1700 * time.Millisecond, 2300 * time.Millisecond, 1100 * time.Millisecond}, *slept)
}

func TestRun_ZeroRetriesMakesOneAttempt(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tasks.csv")
	writeTasks(t, input, taskColumns,
		[]string{"A_01", "", "AAPL", "10-K", "", "2024-11-01", "https://sec.test/a", "", "", "", "", ""},
	)

	cfg := testConfig(dir)
	cfg.MaxFetchRetries = 0
	downloader := &MockDownloader{FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
		return nil, fmt.Errorf("%w: timeout", models.ErrNetwork)
	}}

	f, slept := newTestFinalizer(cfg, downloader, &MockRenderer{})
	summary, err := f.Run(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Counts[StatusFailed])
	assert.Equal(t, 1, downloader.total())
	assert.Empty(t, *slept)
}

func TestRun_UnreadablePDF(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tasks.csv")
	writeTasks(t, input, taskColumns,
		[]string{"A_01", "", "AAPL", "10-K", "", "2024-11-01", "https://sec.test/a", "", "", "", "", ""},
	)

	cfg := testConfig(dir)
	f, _ := newTestFinalizer(cfg, &MockDownloader{}, &MockRenderer{})
	f.Verifier = &MockVerifier{VerifyFunc: func(path string) error {
		return fmt.Errorf("%w: pdf_unreadable: no pages", models.ErrIntegrity)
	}}

	summary, err := f.Run(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, ReasonPDFUnreadable, summary.Failures[0].Reason)

	out, err := table.Read(summary.Output)
	require.NoError(t, err)
	assert.Empty(t, out.Get(0, "PDF_filename_1"))
}

func TestRun_FailureLogHeaderWrittenOnce(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tasks.csv")
	writeTasks(t, input, taskColumns,
		[]string{"A_01", "", "AAPL", "10-K", "", "2024-11-01", "https://sec.test/a", "", "", "", "", ""},
	)

	cfg := testConfig(dir)
	cfg.MaxFetchRetries = 0
	downloader := &MockDownloader{FetchFunc: func(ctx context.Context, url string) ([]byte, error) {
		return []byte(blockPage), nil
	}}

	for i := 0; i < 2; i++ {
		f, _ := newTestFinalizer(cfg, downloader, &MockRenderer{})
		_, err := f.Run(context.Background(), input)
		require.NoError(t, err)
	}

	data, err := os.ReadFile(cfg.FailureLogPath)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "TaskID,URL,Reason"))
	assert.Len(t, readFailures(t, cfg.FailureLogPath), 2)
}

func TestRun_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tasks.csv")
	writeTasks(t, input, []string{"TaskID", "OpenAsHTMLURL_1"}, []string{"A_01", "https://sec.test/a"})

	f, _ := newTestFinalizer(testConfig(dir), &MockDownloader{}, &MockRenderer{})
	_, err := f.Run(context.Background(), input)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrConfiguration))
	assert.Contains(t, err.Error(), "OpenAsHTMLURL_2")

	_, err = os.Stat(OutputPath(input))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_WritesSummaryHTML(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tasks.csv")
	writeTasks(t, input, taskColumns,
		[]string{"A_01", "", "AAPL", "10-K", "", "2024-11-01", "https://sec.test/a", "", "", "", "", ""},
		[]string{"A_02", "", "MSFT", "10-K", "", "2024-07-30", "", "", "", "", "", ""},
	)

	cfg := testConfig(dir)
	cfg.SummaryPath = filepath.Join(dir, "summary.html")
	cfg.Progress = true

	var progress bytes.Buffer
	f, _ := newTestFinalizer(cfg, &MockDownloader{}, &MockRenderer{})
	f.ProgressWriter = &progress

	_, err := f.Run(context.Background(), input)
	require.NoError(t, err)

	page, err := os.ReadFile(cfg.SummaryPath)
	require.NoError(t, err)
	assert.Contains(t, string(page), "<td>done</td>")
	assert.NotZero(t, progress.Len())
}

func TestProgressBar(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Progress = true

	var out bytes.Buffer
	f, _ := newTestFinalizer(cfg, &MockDownloader{}, &MockRenderer{})
	f.ProgressWriter = &out

	bar := f.progressBar(3)
	require.NotNil(t, bar)
	require.NoError(t, bar.Add(1))
	assert.Contains(t, out.String(), "finalizing")

	assert.Nil(t, f.progressBar(0))
	cfg.Progress = false
	f, _ = newTestFinalizer(cfg, &MockDownloader{}, &MockRenderer{})
	assert.Nil(t, f.progressBar(3))
}

func TestRun_OutputWriteFailureIsNotConfiguration(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "tasks.csv")
	writeTasks(t, input, taskColumns,
		[]string{"A_01", "", "AAPL", "10-K", "", "2024-11-01", "", "", "", "", "", ""},
	)
	require.NoError(t, os.Mkdir(OutputPath(input), 0755))

	f, _ := newTestFinalizer(testConfig(dir), &MockDownloader{}, &MockRenderer{})
	_, err := f.Run(context.Background(), input)
	require.Error(t, err)
	assert.False(t, models.IsFatal(err))
	assert.Contains(t, err.Error(), "failed to create")
}

func TestOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "tasks_master_finalized_offline.csv"), OutputPath(filepath.Join("data", "tasks_master.csv")))
	assert.Equal(t, "x_finalized_offline_finalized_offline.csv", OutputPath("x_finalized_offline.csv"))
}
