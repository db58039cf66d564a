package adapters

import (
	"net/url"
	"sort"
	"strings"

	"github.com/ppiankov/doaj-reviewer/internal/extract"
)

// Adapter picks article and issue links from journal platform pages
type Adapter interface {
	// Name returns the adapter name
	Name() string

	// CanHandle checks if this adapter recognises the page's platform
	CanHandle(doc *extract.Document) bool

	// ArticleLinks returns up to max article landing pages listed on an issue page
	ArticleLinks(doc *extract.Document, homepage string, max int) []string

	// IssueLinks returns issue pages listed on an archive page, latest first
	IssueLinks(doc *extract.Document, homepage string, max int) []string
}

// Registry manages platform adapters
type Registry struct {
	adapters []Adapter
	generic  Adapter
}

// NewRegistry creates a new adapter registry
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	// Register built-in adapters
	registry.Register(NewOJSAdapter())

	// Set generic adapter as fallback
	registry.generic = NewGenericAdapter()

	return registry
}

// Register registers a new adapter
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the best adapter for the given page
func (r *Registry) FindAdapter(doc *extract.Document) Adapter {
	for _, adapter := range r.adapters {
		if adapter.CanHandle(doc) {
			return adapter
		}
	}
	return r.generic
}

var skippedExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".svg", ".css", ".js", ".ico"}

// candidate reports whether link may be followed from page: same site,
// no fragment, not a static asset and not the page itself
func candidate(link, page, homepage string) bool {
	if !extract.SameSite(link, homepage) {
		return false
	}
	if strings.Contains(link, "#") {
		return false
	}
	lower := strings.ToLower(link)
	for _, ext := range skippedExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	return extract.URLPath(link) != extract.URLPath(page)
}

type scoredLink struct {
	link  string
	score int
}

// topScored orders links by score descending, then lexically, and caps the list
func topScored(links []scoredLink, max int) []string {
	sort.SliceStable(links, func(i, j int) bool {
		if links[i].score != links[j].score {
			return links[i].score > links[j].score
		}
		return links[i].link < links[j].link
	})
	var out []string
	for _, l := range links {
		if max > 0 && len(out) >= max {
			break
		}
		out = append(out, l.link)
	}
	return out
}

// pathSegments splits a URL path into non-empty segments
func pathSegments(rawURL string) []string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	var segments []string
	for _, s := range strings.Split(parsed.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}
