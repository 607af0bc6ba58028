// Package finalize downloads the filing pages referenced by a task table, prints them
// to PDF and writes filenames and checksums back into a copy of the table.
//
// Each (row, slot) runs through an explicit SlotStatus state machine. Failures are
// scoped to the slot: they go to the failure log and the ledger, and the run moves on.
// Re-running with OnlyMissing resumes where the last run stopped.
package finalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/core/store"
	"filing_tasks/pkg/core/table"
	"filing_tasks/pkg/models"
)

// RequiredColumns must be present in the input table.
var RequiredColumns = []string{"TaskID", "OpenAsHTMLURL_1", "OpenAsHTMLURL_2", "Ticker_1", "Form_1", "FilingDate_1"}

// Downloader fetches a filing page.
type Downloader interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Renderer prints a local HTML file to a PDF file.
type Renderer interface {
	RenderFile(ctx context.Context, htmlPath, pdfPath string) error
}

// Verifier checks a rendered PDF.
type Verifier interface {
	Verify(path string) error
}

// Finalizer holds the collaborators of a run. Optional fields may be left nil.
type Finalizer struct {
	cfg        config.FinalizeConfig
	downloader Downloader
	renderer   Renderer
	logger     *zap.Logger

	Verifier Verifier
	Ledger   store.Ledger

	// ProgressWriter receives the progress bar; nil means stderr.
	ProgressWriter io.Writer

	// Sleep, Rand and Now are replaced in tests.
	Sleep func(time.Duration)
	Rand  func() float64
	Now   func() time.Time
}

// New creates a finalizer.
func New(cfg config.FinalizeConfig, downloader Downloader, renderer Renderer, logger *zap.Logger) *Finalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{
		cfg:        cfg,
		downloader: downloader,
		renderer:   renderer,
		logger:     logger,
		Ledger:     store.NopLedger{},
		Sleep:      time.Sleep,
		Rand:       rand.Float64,
		Now:        time.Now,
	}
}

// OutputPath is <input dir>/<input stem>_finalized_offline.csv.
func OutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, stem+"_finalized_offline.csv")
}

// Run processes every row of the table at inputPath. Only configuration errors are
// returned; slot failures are reported through the summary.
func (f *Finalizer) Run(ctx context.Context, inputPath string) (*Summary, error) {
	t, err := table.Read(inputPath)
	if err != nil {
		return nil, err
	}
	if err := t.Require(RequiredColumns...); err != nil {
		return nil, fmt.Errorf("%s: %w", inputPath, err)
	}
	for _, slot := range []int{1, 2} {
		t.EnsureColumn(models.SlotColumn("PDF_filename", slot))
		t.EnsureColumn(models.SlotColumn("PDF_checksum", slot))
	}

	if err := os.MkdirAll(f.cfg.OutDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create output dir: %v", models.ErrConfiguration, err)
	}
	cache, err := NewHTMLCache(f.cfg.HTMLCacheDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}
	failures, err := OpenFailureLog(f.cfg.FailureLogPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}
	defer failures.Close()

	outputPath := OutputPath(inputPath)
	summary := newSummary(uuid.NewString(), inputPath, outputPath, f.Now())
	summary.Rows = t.Len()
	f.logger.Info("finalize run started",
		zap.String("run_id", summary.RunID),
		zap.String("input", inputPath),
		zap.Int("rows", t.Len()),
	)

	bar := f.progressBar(t.Len())
	for row := 0; row < t.Len(); row++ {
		for _, idx := range []int{1, 2} {
			slot := f.processSlot(ctx, t, cache, row, idx)
			if slot.Status == StatusFailed {
				if err := failures.Write(slot.TaskID, slot.URL, slot.Reason); err != nil {
					f.logger.Warn("failed to append failure log", zap.Error(err))
				}
			}
			f.record(ctx, summary.RunID, slot)
			summary.Add(slot)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if err := t.Write(outputPath); err != nil {
		return summary, err
	}
	summary.Finished = f.Now()

	if f.cfg.SummaryPath != "" {
		if err := summary.WriteHTML(f.cfg.SummaryPath); err != nil {
			f.logger.Warn("failed to write summary", zap.Error(err))
		}
	}

	f.logger.Info("finalize run finished",
		zap.String("run_id", summary.RunID),
		zap.String("output", outputPath),
		zap.Int("done", summary.Counts[StatusDone]),
		zap.Int("skipped", summary.Counts[StatusSkipped]),
		zap.Int("failed", summary.Counts[StatusFailed]),
	)
	return summary, nil
}

func (f *Finalizer) progressBar(rows int) *progressbar.ProgressBar {
	if !f.cfg.Progress || rows == 0 {
		return nil
	}
	w := f.ProgressWriter
	if w == nil {
		w = os.Stderr
	}
	return progressbar.NewOptions(rows,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("finalizing"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

// processSlot drives one (row, slot) to a terminal status and writes the PDF columns
// on success.
func (f *Finalizer) processSlot(ctx context.Context, t *table.Table, cache *HTMLCache, row, idx int) *Slot {
	slot := &Slot{
		Row:    row,
		Index:  idx,
		TaskID: t.Get(row, "TaskID"),
		URL:    CleanURL(t.Get(row, models.SlotColumn("OpenAsHTMLURL", idx))),
		Status: StatusPending,
	}
	log := f.logger.With(zap.String("task_id", slot.TaskID), zap.Int("row", row), zap.Int("slot", idx))

	if slot.URL == "" {
		slot.skip(ReasonNoURL)
		log.Debug("skip: no url")
		return slot
	}
	if f.cfg.OnlyMissing && strings.TrimSpace(t.Get(row, models.SlotColumn("PDF_filename", idx))) != "" {
		slot.skip(ReasonOnlyMissing)
		log.Debug("skip: already has PDF_filename")
		return slot
	}

	slot.Filename = Filename(t.Getter(row), row, idx)
	htmlPath := cache.Path(slot.Filename)
	pdfPath := filepath.Join(f.cfg.OutDir, slot.Filename)

	if f.cfg.Overwrite || !cache.Has(slot.Filename) {
		slot.advance(StatusDownloading)
		if err := f.download(ctx, slot.URL, cache, slot.Filename, log); err != nil {
			slot.fail(ReasonDownloadFailed, err)
			log.Warn("download failed", zap.String("url", slot.URL), zap.Error(err))
			return slot
		}
		f.Sleep(f.jitter())
	}
	slot.advance(StatusDownloaded)

	if size := cache.Size(slot.Filename); size < f.cfg.MinHTMLBytes {
		reason := fmt.Sprintf("html_too_small(%d)", size)
		slot.fail(reason, fmt.Errorf("%w: %s is %d bytes", models.ErrIntegrity, htmlPath, size))
		log.Warn("cached html too small", zap.String("path", htmlPath), zap.Int64("bytes", size))
		return slot
	}

	slot.advance(StatusRendering)
	if err := f.renderer.RenderFile(ctx, htmlPath, pdfPath); err != nil {
		slot.fail(ReasonRenderFailed, err)
		log.Warn("render failed", zap.String("html", htmlPath), zap.Error(err))
		return slot
	}
	if _, err := os.Stat(pdfPath); err != nil {
		slot.fail(ReasonRenderFailed, fmt.Errorf("%w: no output at %s", models.ErrRender, pdfPath))
		log.Warn("render produced no file", zap.String("pdf", pdfPath))
		return slot
	}

	if f.cfg.VerifyPDF && f.Verifier != nil {
		if err := f.Verifier.Verify(pdfPath); err != nil {
			slot.fail(ReasonPDFUnreadable, err)
			log.Warn("rendered pdf unreadable", zap.String("pdf", pdfPath), zap.Error(err))
			return slot
		}
	}

	sum, err := fileChecksum(pdfPath)
	if err != nil {
		slot.fail(ReasonRenderFailed, fmt.Errorf("%w: %v", models.ErrRender, err))
		return slot
	}

	slot.Checksum = sum
	t.Set(row, models.SlotColumn("PDF_filename", idx), slot.Filename)
	t.Set(row, models.SlotColumn("PDF_checksum", idx), slot.Checksum)
	slot.advance(StatusDone)
	log.Debug("rendered", zap.String("pdf", pdfPath))
	return slot
}

// download makes up to MaxFetchRetries+1 attempts. A block page counts as a failed
// attempt and is never cached.
func (f *Finalizer) download(ctx context.Context, url string, cache *HTMLCache, name string, log *zap.Logger) error {
	attempts := f.cfg.MaxFetchRetries + 1
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := f.downloader.Fetch(ctx, url)
		if err == nil && IsBlocked(body, f.cfg.BlockMarker) {
			err = fmt.Errorf("%w: %s", models.ErrBlocked, url)
		}
		if err == nil {
			if err := cache.Set(name, body); err != nil {
				return fmt.Errorf("failed to cache %s: %w", name, err)
			}
			log.Debug("downloaded", zap.String("url", url), zap.Int("bytes", len(body)), zap.Int("attempt", attempt))
			return nil
		}

		lastErr = err
		if attempt < attempts {
			wait := f.backoff(attempt)
			log.Debug("retrying download",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Bool("blocked", errors.Is(err, models.ErrBlocked)),
			)
			f.Sleep(wait)
		}
	}
	return lastErr
}

// jitter is a uniform draw from [SleepMin, SleepMax].
func (f *Finalizer) jitter() time.Duration {
	spread := f.cfg.SleepMax - f.cfg.SleepMin
	return f.cfg.SleepMin + time.Duration(f.Rand()*float64(spread))
}

func (f *Finalizer) backoff(attempt int) time.Duration {
	return f.jitter() + time.Duration(attempt)*f.cfg.RetryStep
}

func (f *Finalizer) record(ctx context.Context, runID string, slot *Slot) {
	if f.Ledger == nil {
		return
	}
	err := f.Ledger.Record(ctx, store.Outcome{
		RunID:      runID,
		TaskID:     slot.TaskID,
		Slot:       slot.Index,
		URL:        slot.URL,
		Status:     slot.Status.String(),
		Reason:     slot.Reason,
		Filename:   slot.Filename,
		Checksum:   slot.Checksum,
		RecordedAt: f.Now(),
	})
	if err != nil {
		f.logger.Warn("failed to record outcome", zap.String("task_id", slot.TaskID), zap.Error(err))
	}
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	if _, err := io.Copy(h, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
