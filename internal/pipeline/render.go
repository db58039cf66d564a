package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ppiankov/doaj-reviewer/internal/extract"
	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// RenderedPage is the DOM of a page after its scripts ran
type RenderedPage struct {
	FinalURL   string
	StatusCode int
	HTML       string
}

// Renderer loads a page in a headless browser
type Renderer interface {
	Render(ctx context.Context, rawURL string) (*RenderedPage, error)
}

var errRendererClosed = errors.New("renderer closed")

// ChromeRenderer renders pages with a shared headless Chrome process
type ChromeRenderer struct {
	userAgent string
	execPath  string
	settle    time.Duration
	timeout   time.Duration

	once        sync.Once
	mu          sync.Mutex
	closed      bool
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeRenderer creates a renderer; Chrome starts on first use
func NewChromeRenderer(cfg model.RenderConfig, userAgent string, timeout time.Duration) *ChromeRenderer {
	return &ChromeRenderer{
		userAgent: userAgent,
		execPath:  cfg.ChromePath,
		settle:    cfg.Settle,
		timeout:   timeout,
	}
}

func (r *ChromeRenderer) start() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(r.userAgent),
		chromedp.Flag("disable-extensions", true),
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

// Render navigates to rawURL, waits for the page to settle and returns its DOM
func (r *ChromeRenderer) Render(ctx context.Context, rawURL string) (*RenderedPage, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, errRendererClosed
	}
	r.once.Do(r.start)
	r.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(r.allocCtx)
	defer cancel()
	if r.timeout > 0 {
		var cancelTimeout context.CancelFunc
		tabCtx, cancelTimeout = context.WithTimeout(tabCtx, r.timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(tabCtx, chromedp.Navigate(rawURL))
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rawURL, err)
	}

	var html, location string
	err = chromedp.Run(tabCtx,
		chromedp.Sleep(r.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&location),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", rawURL, err)
	}

	page := &RenderedPage{FinalURL: location, HTML: html, StatusCode: 200}
	if resp != nil && resp.Status > 0 {
		page.StatusCode = int(resp.Status)
	}
	return page, nil
}

// Close stops the browser process
func (r *ChromeRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	if r.allocCancel != nil {
		r.allocCancel()
	}
}

var (
	jsHints    = []string{"enable javascript", "javascript is required", "noscript", "__next", "data-reactroot"}
	rootMounts = []string{`id="app"`, `id='app'`, `id="root"`, `id='root'`}
)

// NeedsJSRender reports whether a statically fetched page looks like a
// script shell whose content only appears after rendering
func NeedsJSRender(doc *extract.Document) bool {
	if doc.HasCitationMeta() {
		return false
	}
	raw := strings.ToLower(doc.RawHTML)
	textLen := len(strings.TrimSpace(doc.Text))
	scripts := strings.Count(raw, "<script")

	if containsAny(raw, jsHints) && textLen < 300 {
		return true
	}
	if containsAny(raw, rootMounts) && scripts >= 2 && textLen < 500 {
		return true
	}
	return scripts >= 4 && len(doc.Lines()) <= 5 && textLen < 220
}
