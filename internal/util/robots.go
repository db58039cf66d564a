package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// robotsEntry is the cached robots.txt state of one origin. A nil group
// means robots.txt was unreachable or unparsable and everything is allowed.
type robotsEntry struct {
	data  *robotstxt.RobotsData
	group *robotstxt.Group
}

// RobotsChecker answers robots.txt questions for the journal sites of a run.
// Each origin is looked up once, including origins whose robots.txt fails.
type RobotsChecker struct {
	mu        sync.Mutex
	origins   map[string]*robotsEntry
	client    *http.Client
	userAgent string
	agent     string
}

// NewRobotsChecker creates a checker. A nil client gets a plain client with timeout.
func NewRobotsChecker(userAgent string, client *http.Client, timeout time.Duration) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &RobotsChecker{
		origins:   make(map[string]*robotsEntry),
		client:    client,
		userAgent: userAgent,
		agent:     NormalizeUserAgent(userAgent),
	}
}

// CanFetch reports whether rawURL may be fetched and the crawl delay the
// site asks for
func (r *RobotsChecker) CanFetch(ctx context.Context, rawURL string) (bool, time.Duration, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, 0, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Host == "" {
		return false, 0, fmt.Errorf("parse URL: missing host in %q", rawURL)
	}

	entry := r.entry(ctx, parsed.Scheme+"://"+parsed.Host)
	if entry.group == nil {
		return true, 0, nil
	}

	target := parsed.EscapedPath()
	if target == "" {
		target = "/"
	}
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return entry.data.TestAgent(target, r.agent), entry.group.CrawlDelay, nil
}

func (r *RobotsChecker) entry(ctx context.Context, origin string) *robotsEntry {
	r.mu.Lock()
	cached, ok := r.origins[origin]
	r.mu.Unlock()
	if ok {
		return cached
	}

	entry := &robotsEntry{}
	if data, err := r.load(ctx, origin); err == nil {
		entry.data = data
		entry.group = data.FindGroup(r.agent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.origins[origin]; ok {
		return cached
	}
	r.origins[origin] = entry
	return entry
}

func (r *RobotsChecker) load(ctx context.Context, origin string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	return robotstxt.FromResponse(resp)
}

// Clear forgets every origin
func (r *RobotsChecker) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.origins = make(map[string]*robotsEntry)
}

// NormalizeUserAgent reduces a user agent to its product token
func NormalizeUserAgent(ua string) string {
	token, _, _ := strings.Cut(strings.TrimSpace(ua), " ")
	token, _, _ = strings.Cut(token, "/")
	return token
}
