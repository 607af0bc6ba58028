// Package render prints cached filing HTML to PDF with headless Chrome and checks
// the result with MuPDF.
package render

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"filing_tasks/pkg/core/config"
	"filing_tasks/pkg/models"
)

// ChromeRenderer drives one headless browser page for the whole run.
// The browser is launched on the first render.
type ChromeRenderer struct {
	cfg       config.RenderConfig
	userAgent string
	logger    *zap.Logger

	mu       sync.Mutex
	launch   *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	launched bool
}

// NewChromeRenderer creates a renderer. Nothing is started until RenderFile.
func NewChromeRenderer(cfg config.RenderConfig, userAgent string, logger *zap.Logger) *ChromeRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChromeRenderer{cfg: cfg, userAgent: userAgent, logger: logger}
}

func (r *ChromeRenderer) start(ctx context.Context) error {
	if r.launched {
		return nil
	}

	l := launcher.New().Headless(true)
	if r.cfg.ChromeBin != "" {
		l = l.Bin(r.cfg.ChromeBin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return fmt.Errorf("open page: %w", err)
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      r.userAgent,
		AcceptLanguage: r.cfg.Locale,
	}); err != nil {
		r.logger.Warn("failed to set user agent", zap.Error(err))
	}

	r.launch, r.browser, r.page = l, browser, page
	r.launched = true
	r.logger.Debug("chrome started", zap.String("control_url", controlURL))
	return nil
}

// RenderFile loads htmlPath from disk and prints it to pdfPath.
// All failures wrap models.ErrRender.
func (r *ChromeRenderer) RenderFile(ctx context.Context, htmlPath, pdfPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.start(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrRender, err)
	}

	abs, err := filepath.Abs(htmlPath)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrRender, err)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}
	page := r.page.Context(ctx)
	if err := page.Navigate(fileURL(abs)); err != nil {
		return fmt.Errorf("%w: navigate %s: %v", models.ErrRender, htmlPath, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("%w: load %s: %v", models.ErrRender, htmlPath, err)
	}

	margin := r.cfg.MarginInches
	stream, err := page.PDF(&proto.PagePrintToPDF{
		Landscape:           false,
		DisplayHeaderFooter: false,
		PrintBackground:     false,
		PaperWidth:          ptr(r.cfg.PaperWidth),
		PaperHeight:         ptr(r.cfg.PaperHeight),
		MarginTop:           ptr(margin),
		MarginBottom:        ptr(margin),
		MarginLeft:          ptr(margin),
		MarginRight:         ptr(margin),
	})
	if err != nil {
		return fmt.Errorf("%w: print %s: %v", models.ErrRender, htmlPath, err)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		return fmt.Errorf("%w: read pdf stream: %v", models.ErrRender, err)
	}

	if err := os.WriteFile(pdfPath, data, 0644); err != nil {
		return fmt.Errorf("%w: write %s: %v", models.ErrRender, pdfPath, err)
	}
	return nil
}

// Close shuts the browser down and removes its profile directory.
func (r *ChromeRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.launched {
		return nil
	}
	r.launched = false

	err := r.browser.Close()
	r.launch.Cleanup()
	return err
}

func fileURL(abs string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}

func ptr(v float64) *float64 {
	return &v
}
