package worker

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

var errMissingHost = errors.New("missing host")

// Limiter gates request starts per registrable domain. Two requests to
// the same domain never start closer than the domain's interval.
type Limiter struct {
	limiters        map[string]*rate.Limiter
	intervals       map[string]time.Duration
	mu              sync.RWMutex
	defaultInterval time.Duration
}

// NewLimiter creates a limiter with a minimum inter-request interval
func NewLimiter(minInterval time.Duration) *Limiter {
	if minInterval < 0 {
		minInterval = 0
	}

	return &Limiter{
		limiters:        make(map[string]*rate.Limiter),
		intervals:       make(map[string]time.Duration),
		defaultInterval: minInterval,
	}
}

// Wait blocks until a request to rawURL may start
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain, err := DomainKey(rawURL)
	if err != nil {
		return err
	}

	return l.getLimiter(domain).Wait(ctx)
}

// Allow checks if a request is allowed without waiting
func (l *Limiter) Allow(rawURL string) bool {
	domain, err := DomainKey(rawURL)
	if err != nil {
		return false
	}

	return l.getLimiter(domain).Allow()
}

// getLimiter returns the rate limiter for a domain
func (l *Limiter) getLimiter(domain string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[domain]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	// Double-check after acquiring write lock
	if limiter, exists := l.limiters[domain]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(intervalLimit(l.defaultInterval), 1)
	l.limiters[domain] = limiter
	l.intervals[domain] = l.defaultInterval

	return limiter
}

// SetDomainInterval raises the interval of one domain, e.g. from a
// robots.txt crawl-delay. Intervals are never lowered below the default.
func (l *Limiter) SetDomainInterval(rawURL string, interval time.Duration) {
	domain, err := DomainKey(rawURL)
	if err != nil {
		return
	}
	limiter := l.getLimiter(domain)

	l.mu.Lock()
	defer l.mu.Unlock()
	if interval <= l.intervals[domain] {
		return
	}
	l.intervals[domain] = interval
	limiter.SetLimit(intervalLimit(interval))
}

// Interval returns the effective interval for the domain of rawURL
func (l *Limiter) Interval(rawURL string) time.Duration {
	domain, err := DomainKey(rawURL)
	if err != nil {
		return l.defaultInterval
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if interval, ok := l.intervals[domain]; ok {
		return interval
	}
	return l.defaultInterval
}

func intervalLimit(interval time.Duration) rate.Limit {
	if interval <= 0 {
		return rate.Inf
	}
	return rate.Every(interval)
}

// DomainKey returns the registrable domain of a URL. IP addresses and
// single-label hosts are keyed by host.
func DomainKey(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return "", &url.Error{Op: "parse", URL: rawURL, Err: errMissingHost}
	}
	if net.ParseIP(host) != nil || !strings.Contains(host, ".") {
		return host, nil
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host, nil
	}
	return domain, nil
}
