package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

func TestNormalizeUserAgent(t *testing.T) {
	tests := map[string]string{
		"DOAJ-Reviewer/0.1 (+https://example.org)": "DOAJ-Reviewer",
		"curl/8.0":   "curl",
		"PlainAgent": "PlainAgent",
		"":           "",
	}
	for input, want := range tests {
		if got := NormalizeUserAgent(input); got != want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestRobotsChecker_DisallowAndCrawlDelay(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("User-agent: DOAJ-Reviewer\nDisallow: /private\nCrawl-delay: 2\n\nUser-agent: *\nDisallow: /\n"))
	}))
	defer server.Close()

	checker := NewRobotsChecker(model.DefaultUserAgent, server.Client(), time.Second)
	ctx := context.Background()

	allowed, delay, err := checker.CanFetch(ctx, server.URL+"/about/policy")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("expected /about/policy to be allowed")
	}
	if delay != 2*time.Second {
		t.Errorf("expected crawl delay 2s, got %v", delay)
	}

	allowed, _, err = checker.CanFetch(ctx, server.URL+"/private/board")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if allowed {
		t.Error("expected /private/board to be disallowed")
	}

	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("robots.txt should be fetched once, got %d", got)
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker("agent", server.Client(), time.Second)
	allowed, delay, err := checker.CanFetch(context.Background(), server.URL+"/anything")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed || delay != 0 {
		t.Errorf("expected allowed with no delay, got %v %v", allowed, delay)
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	checker := NewRobotsChecker("agent", nil, 200*time.Millisecond)
	allowed, _, err := checker.CanFetch(context.Background(), "http://127.0.0.1:1/page")
	if err != nil {
		t.Fatalf("CanFetch failed: %v", err)
	}
	if !allowed {
		t.Error("unreachable robots.txt should allow")
	}

	if _, _, err := checker.CanFetch(context.Background(), "::bad"); err == nil {
		t.Error("expected parse error")
	}
}

func TestRobotsChecker_FailedLookupIsRemembered(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	checker := NewRobotsChecker("agent", server.Client(), time.Second)
	for _, path := range []string{"/about", "/fees", "/issue/3"} {
		allowed, _, err := checker.CanFetch(context.Background(), server.URL+path)
		if err != nil || !allowed {
			t.Fatalf("CanFetch(%s) = %v, %v", path, allowed, err)
		}
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("robots.txt should be requested once per origin, got %d", got)
	}

	checker.Clear()
	_, _, _ = checker.CanFetch(context.Background(), server.URL+"/about")
	if got := atomic.LoadInt32(&hits); got != 2 {
		t.Errorf("Clear should force a new lookup, got %d requests", got)
	}
}

func TestNewProxyFunc(t *testing.T) {
	cfg := model.HTTPConfig{HTTPProxy: "http://proxy.internal:3128", NoProxy: "skip.example.org"}
	proxy := NewProxyFunc(cfg)

	req := httptest.NewRequest(http.MethodGet, "https://journal.example.org/about", nil)
	got, err := proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got == nil || got.Host != "proxy.internal:3128" {
		t.Errorf("expected https request to use the http proxy, got %v", got)
	}

	req = httptest.NewRequest(http.MethodGet, "http://skip.example.org/about", nil)
	got, err = proxy(req)
	if err != nil {
		t.Fatalf("proxy failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected no proxy for no_proxy host, got %v", got)
	}
}
