package pipeline

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/ppiankov/doaj-reviewer/internal/cache"
	"github.com/ppiankov/doaj-reviewer/internal/extract"
	"github.com/ppiankov/doaj-reviewer/internal/logging"
	"github.com/ppiankov/doaj-reviewer/internal/model"
	"github.com/ppiankov/doaj-reviewer/internal/util"
	"github.com/ppiankov/doaj-reviewer/internal/worker"
)

// fetchSleepFunc waits between attempts; tests replace it
var fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Fetcher retrieves page text behind retry, throttling, TLS fallback,
// challenge detection and optional rendering
type Fetcher struct {
	httpClient     *http.Client
	insecureClient *http.Client
	httpCfg        model.HTTPConfig
	fetchCfg       model.FetchConfig

	renderer Renderer
	store    *cache.FetchStore
	limiter  *worker.Limiter
	robots   *util.RobotsChecker
	logger   *slog.Logger
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithRenderer enables the headless rendering path
func WithRenderer(r Renderer) FetcherOption {
	return func(f *Fetcher) { f.renderer = r }
}

// WithFetchStore caches successful results
func WithFetchStore(s *cache.FetchStore) FetcherOption {
	return func(f *Fetcher) { f.store = s }
}

// WithLimiter replaces the per-domain gate
func WithLimiter(l *worker.Limiter) FetcherOption {
	return func(f *Fetcher) { f.limiter = l }
}

// WithRobots enables robots.txt checks
func WithRobots(r *util.RobotsChecker) FetcherOption {
	return func(f *Fetcher) { f.robots = r }
}

// WithLogger sets the fetch logger
func WithLogger(l *slog.Logger) FetcherOption {
	return func(f *Fetcher) { f.logger = l }
}

// NewFetcher creates a new Fetcher with the given configuration
func NewFetcher(cfg *model.Config, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		httpCfg:  cfg.HTTP,
		fetchCfg: cfg.Fetch,
		limiter:  worker.NewLimiter(cfg.Throttle.MinInterval),
		logger:   logging.Discard(),
	}
	if f.fetchCfg.MaxAttempts < 1 {
		f.fetchCfg.MaxAttempts = 1
	}
	if f.httpCfg.MaxBodyBytes <= 0 {
		f.httpCfg.MaxBodyBytes = model.DefaultConfig().HTTP.MaxBodyBytes
	}
	f.httpClient = newHTTPClient(cfg.HTTP, false)
	f.insecureClient = newHTTPClient(cfg.HTTP, true)

	for _, opt := range opts {
		opt(f)
	}
	return f
}

func newHTTPClient(cfg model.HTTPConfig, insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg)
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}
}

// page is one HTTP or rendered response
type page struct {
	finalURL    string
	statusCode  int
	contentType string
	body        []byte
	headers     http.Header
	rendered    bool
}

// Fetch retrieves rawURL. It never returns nil; failures are carried in the
// result's status, error kind and crawl notes.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, mode model.JSMode) *model.FetchResult {
	if mode == "" {
		mode = f.fetchCfg.JSMode
	}
	if !mode.Valid() {
		mode = model.JSModeAuto
	}
	result := &model.FetchResult{URL: rawURL, CrawlNotes: []string{}}

	if cached, ok := f.store.Load(mode, rawURL); ok {
		cached.Note("Served from fetch cache.")
		return cached
	}

	if err := validateURL(rawURL); err != nil {
		return f.fail(result, model.KindNetworkTerminal, err, fmt.Sprintf("Invalid URL: %v.", err))
	}

	if f.robots != nil && f.fetchCfg.RespectRobots {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err == nil && !allowed {
			return f.fail(result, model.KindNetworkTerminal, errors.New("disallowed by robots.txt"), "Blocked by robots.txt.")
		}
		if delay > 0 {
			f.limiter.SetDomainInterval(rawURL, delay)
		}
	}

	var (
		chosen *page
		err    error
	)
	switch mode {
	case model.JSModeOff:
		chosen, err = f.fetchStatic(ctx, rawURL, result)
	case model.JSModeOn:
		chosen, err = f.fetchRendered(ctx, rawURL, result)
		if err != nil {
			result.Note(fmt.Sprintf("Rendering failed, using static fetch: %v.", err))
			chosen, err = f.fetchStatic(ctx, rawURL, result)
		}
	default:
		chosen, err = f.fetchAuto(ctx, rawURL, result)
	}

	if err != nil {
		kind := model.KindNetworkTerminal
		if isRetryableFetchError(err) || ctx.Err() != nil {
			kind = model.KindNetworkTransient
		}
		if ctx.Err() != nil {
			return f.fail(result, kind, err, "Fetch abandoned: run deadline exceeded.")
		}
		return f.fail(result, kind, err, fmt.Sprintf("Fetch failed: %v.", err))
	}

	f.finish(result, chosen)
	if result.Status == model.FetchOK {
		if err := f.store.Store(mode, rawURL, result); err != nil {
			f.logger.Warn("cache store failed", "url", rawURL, "error", err)
		}
	}
	return result
}

// fetchAuto fetches statically and renders when the static page failed or
// looks like a script shell
func (f *Fetcher) fetchAuto(ctx context.Context, rawURL string, result *model.FetchResult) (*page, error) {
	static, err := f.fetchStatic(ctx, rawURL, result)
	if err != nil {
		if f.renderer == nil || ctx.Err() != nil {
			return nil, err
		}
		rendered, rerr := f.fetchRendered(ctx, rawURL, result)
		if rerr != nil {
			return nil, err
		}
		result.Note("Static fetch failed; rendered page used.")
		return rendered, nil
	}
	if f.renderer == nil {
		return static, nil
	}

	staticDoc := parsePage(rawURL, static)
	if static.statusCode >= 400 {
		rendered, rerr := f.fetchRendered(ctx, rawURL, result)
		if rerr != nil {
			return static, nil
		}
		renderedDoc := parsePage(rawURL, rendered)
		if rendered.statusCode < static.statusCode ||
			len(strings.TrimSpace(renderedDoc.Text)) > len(strings.TrimSpace(staticDoc.Text))+100 {
			result.Note(fmt.Sprintf("Static fetch returned HTTP %d; rendered page used.", static.statusCode))
			return rendered, nil
		}
		return static, nil
	}

	if !isHTML(static.contentType, static.body) || !NeedsJSRender(staticDoc) {
		return static, nil
	}
	rendered, rerr := f.fetchRendered(ctx, rawURL, result)
	if rerr != nil {
		result.Note(fmt.Sprintf("Page looks script-rendered but rendering failed: %v.", rerr))
		return static, nil
	}
	result.Note("Page looks script-rendered; rendered page used.")
	return rendered, nil
}

func (f *Fetcher) fetchRendered(ctx context.Context, rawURL string, result *model.FetchResult) (*page, error) {
	if f.renderer == nil {
		return nil, errors.New("renderer not configured")
	}
	if err := f.limiter.Wait(ctx, rawURL); err != nil {
		return nil, err
	}
	f.logger.Debug("render", "url", rawURL)
	rp, err := f.renderer.Render(ctx, rawURL)
	if err != nil {
		f.logger.Warn("render failed", "url", rawURL, "error", err)
		return nil, err
	}
	finalURL := rp.FinalURL
	if finalURL == "" {
		finalURL = rawURL
	}
	status := rp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	return &page{
		finalURL:    finalURL,
		statusCode:  status,
		contentType: "text/html; charset=utf-8",
		body:        []byte(rp.HTML),
		rendered:    true,
	}, nil
}

// fetchStatic performs the static GET with retry and backoff. A response
// with an HTTP error status is returned as a page once retries are spent.
func (f *Fetcher) fetchStatic(ctx context.Context, rawURL string, result *model.FetchResult) (*page, error) {
	client := f.httpClient
	maxAttempts := f.fetchCfg.MaxAttempts
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := f.backoff(attempt - 1)
			f.logger.Warn("retrying fetch", "url", rawURL, "attempt", attempt, "delay", delay)
			if err := fetchSleepFunc(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := f.limiter.Wait(ctx, rawURL); err != nil {
			return nil, err
		}

		f.logger.Debug("fetch", "url", rawURL, "attempt", attempt)
		p, err := f.do(ctx, client, rawURL)
		if err != nil && isCertificateError(err) && f.fetchCfg.TLSFallback && !result.InsecureTLS {
			result.InsecureTLS = true
			result.Note("TLS certificate verification failed; retried once without verification.")
			f.logger.Warn("tls verification failed, retrying insecure", "url", rawURL, "error", err)
			client = f.insecureClient
			p, err = f.do(ctx, client, rawURL)
		}

		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, err
			}
			if !isRetryableFetchError(err) {
				return nil, err
			}
			result.Note(fmt.Sprintf("Attempt %d/%d failed: %v.", attempt, maxAttempts, err))
			continue
		}

		if isRetryableStatus(p.statusCode) {
			if DetectChallenge(parsePage(rawURL, p), p.headers).Blocked {
				return p, nil
			}
			if attempt < maxAttempts {
				result.Note(fmt.Sprintf("Attempt %d/%d returned HTTP %d.", attempt, maxAttempts, p.statusCode))
				continue
			}
			result.Note(fmt.Sprintf("Attempt %d/%d returned HTTP %d; retries exhausted.", attempt, maxAttempts, p.statusCode))
		}
		return p, nil
	}

	result.Note(fmt.Sprintf("Retries exhausted after %d attempts.", maxAttempts))
	return nil, lastErr
}

func (f *Fetcher) do(ctx context.Context, client *http.Client, rawURL string) (*page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.httpCfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,application/pdf;q=0.8,*/*;q=0.7")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	// Read body with size limit
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.httpCfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &page{
		finalURL:    resp.Request.URL.String(),
		statusCode:  resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		body:        body,
		headers:     resp.Header,
	}, nil
}

// finish turns the chosen page into the result: text extraction, challenge
// classification and HTTP status handling
func (f *Fetcher) finish(result *model.FetchResult, p *page) {
	result.FinalURL = p.finalURL
	result.StatusCode = p.statusCode
	result.ContentType = p.contentType
	result.Rendered = p.rendered

	switch {
	case isPDF(p.contentType, p.body):
		text, err := extract.PDFText(p.body)
		if err != nil {
			result.Note(fmt.Sprintf("PDF text extraction failed: %v.", err))
		}
		result.Text = text
	case extract.IsFeed(p.contentType, string(p.body)):
		result.Body = string(p.body)
	default:
		doc := parsePage(result.URL, p)
		challenge := DetectChallenge(doc, p.headers)
		if challenge.Blocked {
			result.Status = model.FetchBlocked
			result.ChallengeDetected = true
			result.ChallengeProvider = challenge.Provider
			result.ErrorKind = model.KindChallengeBlocked
			result.Title = doc.Title
			result.Note(challengeNote(challenge, p.statusCode))
			f.logger.Warn("challenge detected", "url", result.URL, "provider", challenge.Provider, "reason", challenge.Reason)
			return
		}
		result.Title = doc.Title
		result.Text = doc.Text
		result.Body = doc.RawHTML
		result.Links = doc.Links
		result.Meta = doc.Meta
	}

	if p.statusCode >= 400 {
		kind := model.KindNetworkTerminal
		if isRetryableStatus(p.statusCode) {
			kind = model.KindNetworkTransient
		}
		result.Status = model.FetchError
		result.ErrorKind = kind
		result.Error = (&model.ReviewError{Kind: kind, URL: result.URL, Err: fmt.Errorf("unexpected status: %d", p.statusCode)}).Error()
		result.Text = ""
		result.Note(fmt.Sprintf("HTTP %d returned for %s.", p.statusCode, result.URL))
		return
	}

	result.Status = model.FetchOK
	result.Note(fmt.Sprintf("Fetched %s (HTTP %d, %d chars).", result.URL, p.statusCode, len(result.Text)))
}

func (f *Fetcher) fail(result *model.FetchResult, kind model.ErrorKind, err error, note string) *model.FetchResult {
	result.Status = model.FetchError
	result.ErrorKind = kind
	result.Error = (&model.ReviewError{Kind: kind, URL: result.URL, Err: err}).Error()
	result.Note(note)
	f.logger.Warn("fetch failed", "url", result.URL, "kind", kind, "error", err)
	return result
}

func (f *Fetcher) backoff(retry int) time.Duration {
	delay := f.fetchCfg.BaseBackoff << (retry - 1)
	if delay <= 0 || (f.fetchCfg.MaxBackoff > 0 && delay > f.fetchCfg.MaxBackoff) {
		delay = f.fetchCfg.MaxBackoff
	}
	return delay
}

func challengeNote(c Challenge, status int) string {
	provider := c.Provider
	if provider == "" {
		provider = "unknown"
	}
	note := fmt.Sprintf("Blocked by anti-bot protection (provider: %s, HTTP %d)", provider, status)
	if c.Reason != "" {
		note += fmt.Sprintf(", marker %q", c.Reason)
	}
	return note + "."
}

// parsePage decodes the body to UTF-8 and parses it
func parsePage(rawURL string, p *page) *extract.Document {
	pageURL := p.finalURL
	if pageURL == "" {
		pageURL = rawURL
	}
	return extract.ParseDocument(pageURL, p.statusCode, p.contentType, decodeBody(p.body, p.contentType))
}

func decodeBody(body []byte, contentType string) string {
	reader, err := charset.NewReader(strings.NewReader(string(body)), contentType)
	if err != nil {
		return string(body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(body)
	}
	return string(decoded)
}

func isPDF(contentType string, body []byte) bool {
	return strings.Contains(strings.ToLower(contentType), "application/pdf") ||
		strings.HasPrefix(string(body[:min(len(body), 5)]), "%PDF-")
}

func isHTML(contentType string, body []byte) bool {
	return !isPDF(contentType, body) && !extract.IsFeed(contentType, string(body))
}

func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// isCertificateError reports whether err is a TLS certificate verification failure
func isCertificateError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var unknownAuth x509.UnknownAuthorityError
	if errors.As(err, &unknownAuth) {
		return true
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return true
	}
	var invalidErr x509.CertificateInvalidError
	return errors.As(err, &invalidErr)
}

// isRetryableFetchError checks if a fetch error is transient
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return !dnsErr.IsNotFound && (dnsErr.IsTimeout || dnsErr.IsTemporary)
	}
	if isCertificateError(err) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection reset", "connection refused", "broken pipe", "timeout", "unexpected eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
