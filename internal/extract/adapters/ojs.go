package adapters

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ppiankov/doaj-reviewer/internal/extract"
)

// OJSAdapter handles journals hosted on Open Journal Systems
type OJSAdapter struct {
	generic *GenericAdapter
}

// NewOJSAdapter creates a new OJS adapter
func NewOJSAdapter() *OJSAdapter {
	return &OJSAdapter{generic: NewGenericAdapter()}
}

// Name returns the adapter name
func (a *OJSAdapter) Name() string {
	return "ojs"
}

// CanHandle checks for the OJS generator tag or its URL scheme
func (a *OJSAdapter) CanHandle(doc *extract.Document) bool {
	for _, generator := range doc.MetaValues("generator") {
		if strings.Contains(strings.ToLower(generator), "open journal systems") {
			return true
		}
	}
	for _, link := range doc.Links {
		if strings.Contains(link, "/index.php/") &&
			(strings.Contains(link, "/article/view/") || strings.Contains(link, "/issue/view/")) {
			return true
		}
	}
	return false
}

// ArticleLinks reads article summaries of an OJS table of contents.
// Galley links (/article/view/<id>/<galley>) are collapsed to the landing page.
func (a *OJSAdapter) ArticleLinks(doc *extract.Document, homepage string, max int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, link := range doc.Links {
		if max > 0 && len(out) >= max {
			break
		}
		landing, ok := ojsLanding(link, "article")
		if !ok || seen[landing] || !candidate(landing, doc.URL, homepage) {
			continue
		}
		seen[landing] = true
		out = append(out, landing)
	}
	if len(out) == 0 {
		return a.generic.ArticleLinks(doc, homepage, max)
	}
	return out
}

// IssueLinks reads the issue list of an OJS archive page
func (a *OJSAdapter) IssueLinks(doc *extract.Document, homepage string, max int) []string {
	links := doc.Links
	if summaries := ojsSummaryLinks(doc.RawHTML, ".obj_issue_summary a.title, .issues_archive a.title"); len(summaries) > 0 {
		links = extract.ParseDocument(doc.URL, doc.StatusCode, doc.ContentType, strings.Join(summaries, "")).Links
	}

	seen := make(map[string]bool)
	var out []string
	for _, link := range links {
		if max > 0 && len(out) >= max {
			break
		}
		landing, ok := ojsLanding(link, "issue")
		if !ok || seen[landing] || !candidate(landing, doc.URL, homepage) {
			continue
		}
		seen[landing] = true
		out = append(out, landing)
	}
	if len(out) == 0 {
		return a.generic.IssueLinks(doc, homepage, max)
	}
	return out
}

// ojsLanding trims an OJS <kind>/view/<id>/... link to <kind>/view/<id>
func ojsLanding(link, kind string) (string, bool) {
	marker := "/" + kind + "/view/"
	i := strings.Index(link, marker)
	if i < 0 {
		return "", false
	}
	rest := link[i+len(marker):]
	if j := strings.IndexAny(rest, "/?"); j >= 0 {
		rest = rest[:j]
	}
	if rest == "" {
		return "", false
	}
	return link[:i+len(marker)] + rest, true
}

// ojsSummaryLinks returns the anchors matched by selector, re-serialised
func ojsSummaryLinks(rawHTML, selector string) []string {
	if !strings.Contains(rawHTML, "obj_issue_summary") && !strings.Contains(rawHTML, "issues_archive") {
		return nil
	}
	gq, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil
	}
	var anchors []string
	gq.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if html, err := goquery.OuterHtml(s); err == nil {
			anchors = append(anchors, html)
		}
	})
	return anchors
}
