package worker

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(time.Second)
	if limiter.defaultInterval != time.Second {
		t.Errorf("expected interval 1s, got %v", limiter.defaultInterval)
	}

	l2 := NewLimiter(-time.Second)
	if l2.defaultInterval != 0 {
		t.Errorf("expected zero interval for negative input, got %v", l2.defaultInterval)
	}
}

func TestLimiter_SameDomainSpacing(t *testing.T) {
	interval := 60 * time.Millisecond
	limiter := NewLimiter(interval)
	ctx := context.Background()

	urls := []string{
		"https://journal.example.org/about",
		"https://www.example.org/policy",
		"https://example.org/board",
	}

	var mu sync.Mutex
	var starts []time.Time
	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if err := limiter.Wait(ctx, u); err != nil {
				t.Errorf("wait failed: %v", err)
				return
			}
			mu.Lock()
			starts = append(starts, time.Now())
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	if len(starts) != 3 {
		t.Fatalf("expected 3 starts, got %d", len(starts))
	}
	sortTimes(starts)
	slack := 15 * time.Millisecond
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < interval-slack {
			t.Errorf("starts %d and %d only %v apart, want >= %v", i-1, i, gap, interval)
		}
	}
}

func TestLimiter_DifferentDomainsUnconstrained(t *testing.T) {
	limiter := NewLimiter(time.Hour)

	if !limiter.Allow("https://a.example.org/x") {
		t.Fatal("first request should pass")
	}
	if limiter.Allow("https://b.example.org/y") {
		t.Error("subdomain of same registrable domain should share the gate")
	}
	if !limiter.Allow("https://journals.other.ac.uk/z") {
		t.Error("other domain should pass")
	}
}

func TestLimiter_SetDomainInterval(t *testing.T) {
	limiter := NewLimiter(10 * time.Millisecond)
	u := "http://slow.example.com/page"

	limiter.SetDomainInterval(u, time.Hour)
	if got := limiter.Interval(u); got != time.Hour {
		t.Errorf("expected 1h interval, got %v", got)
	}

	// First request passes (burst 1), second is refused
	if !limiter.Allow(u) {
		t.Errorf("first request should pass")
	}
	if limiter.Allow(u) {
		t.Errorf("second request should fail")
	}

	// Lowering is ignored
	limiter.SetDomainInterval(u, time.Millisecond)
	if got := limiter.Interval(u); got != time.Hour {
		t.Errorf("interval lowered to %v", got)
	}

	if got := limiter.Interval("http://fast.example.net"); got != 10*time.Millisecond {
		t.Errorf("other domain interval = %v", got)
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(time.Hour)
	u := "https://example.org"
	if err := limiter.Wait(context.Background(), u); err != nil {
		t.Fatalf("first wait failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := limiter.Wait(ctx, u); err == nil {
		t.Error("expected error when the gate cannot open before the deadline")
	}
}

func TestDomainKey(t *testing.T) {
	tests := map[string]string{
		"http://example.com/foo":             "example.com",
		"https://journals.uni.ac.uk/ojs":     "uni.ac.uk",
		"https://WWW.Example.ORG:8443/a":     "example.org",
		"http://127.0.0.1:8080/page":         "127.0.0.1",
		"http://localhost:3000/":             "localhost",
		"https://revista.example.com.br/ojs": "example.com.br",
	}
	for input, want := range tests {
		got, err := DomainKey(input)
		if err != nil {
			t.Errorf("DomainKey(%q) failed: %v", input, err)
			continue
		}
		if got != want {
			t.Errorf("DomainKey(%q) = %q, want %q", input, got, want)
		}
	}

	if _, err := DomainKey("::invalid"); err == nil {
		t.Errorf("expected error for invalid URL")
	}
	if _, err := DomainKey("/relative/path"); err == nil {
		t.Errorf("expected error for URL without host")
	}
}

func sortTimes(ts []time.Time) {
	for i := 1; i < len(ts); i++ {
		for j := i; j > 0 && ts[j].Before(ts[j-1]); j-- {
			ts[j], ts[j-1] = ts[j-1], ts[j]
		}
	}
}
