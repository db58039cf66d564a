package adapters

import (
	"strings"

	"github.com/ppiankov/doaj-reviewer/internal/extract"
)

var (
	articlePositiveTokens = []string{"/article", "/view/", "/doi/", "/full", "/abs", "/pdf"}
	issuePathTokens       = []string{"/issue/", "/volume/", "/vol", "/archives"}
	articleNegativeTokens = []string{
		"/about", "/editorial", "/reviewer", "/author", "/guideline", "/policy",
		"/login", "/register", "/search", "/announcement", "/contact",
	}
	issueLinkTokens = []string{"/issue/", "/issues/", "/volume", "/vol-", "/vol.", "/vol/", "/number/", "/no-"}
)

// GenericAdapter is the fallback adapter for unknown platforms
type GenericAdapter struct{}

// NewGenericAdapter creates a new generic adapter
func NewGenericAdapter() *GenericAdapter {
	return &GenericAdapter{}
}

// Name returns the adapter name
func (a *GenericAdapter) Name() string {
	return "generic"
}

// CanHandle always returns true (fallback adapter)
func (a *GenericAdapter) CanHandle(doc *extract.Document) bool {
	return true
}

// ArticleLinks keeps same-site links whose path scores like an article page
func (a *GenericAdapter) ArticleLinks(doc *extract.Document, homepage string, max int) []string {
	var picks []scoredLink
	for _, link := range doc.Links {
		if !candidate(link, doc.URL, homepage) {
			continue
		}
		if score := ArticleLinkScore(link); score >= 2 {
			picks = append(picks, scoredLink{link: link, score: score})
		}
	}
	return topScored(picks, max)
}

// IssueLinks keeps same-site links whose path names an issue or volume, in page order
func (a *GenericAdapter) IssueLinks(doc *extract.Document, homepage string, max int) []string {
	var out []string
	for _, link := range doc.Links {
		if max > 0 && len(out) >= max {
			break
		}
		if !candidate(link, doc.URL, homepage) {
			continue
		}
		path := extract.URLPath(link)
		if strings.Contains(path, "/archive") || ArticleLinkScore(link) >= 5 {
			continue
		}
		for _, token := range issueLinkTokens {
			if strings.Contains(path, token) {
				out = append(out, link)
				break
			}
		}
	}
	return out
}

// ArticleLinkScore rates how likely a URL path is an article landing page
func ArticleLinkScore(link string) int {
	path := extract.URLPath(link)
	score := 0

	for _, token := range articlePositiveTokens {
		if strings.Contains(path, token) {
			score += 3
		}
	}
	if strings.Contains(path, "article") {
		score += 2
	}
	for _, token := range issuePathTokens {
		if strings.Contains(path, token) {
			score++
			break
		}
	}
	for _, token := range articleNegativeTokens {
		if strings.Contains(path, token) {
			score -= 3
		}
	}
	return score
}
