package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/doaj-reviewer/internal/extract"
	"github.com/ppiankov/doaj-reviewer/internal/model"
)

const issuesPerReview = 2

// buildIssueUnits measures the two most recent issues. Latest-content
// listings come first; archive pages top the list up.
func (r *run) buildIssueUnits(ctx context.Context) {
	var issues []string
	seen := make(map[string]bool)
	add := func(u string) {
		if len(issues) < issuesPerReview && !seen[u] {
			seen[u] = true
			issues = append(issues, u)
		}
	}

	for _, u := range r.sub.URLsFor(model.HintLatestContent) {
		add(u)
	}
	for _, u := range r.sub.URLsFor(model.HintArchives) {
		res := r.results[u]
		if res == nil {
			continue
		}
		r.noteFetch(model.HintArchives, res)
		if len(issues) >= issuesPerReview || !res.OK() {
			continue
		}
		doc := documentOf(res)
		for _, link := range r.adapters.FindAdapter(doc).IssueLinks(doc, r.sub.JournalHomepageURL, issuesPerReview+len(issues)) {
			add(link)
		}
	}
	r.fetchAll(ctx, issues)

	for i, u := range issues {
		res := r.results[u]
		unit := model.Unit{
			ID:           fmt.Sprintf("issue-%d", i+1),
			Label:        u,
			WindowType:   model.WindowIssue,
			SourceURL:    u,
			Unidentified: !res.OK(),
		}
		if res.OK() && res.Title != "" {
			unit.Label = res.Title
		}
		r.noteFetch(model.HintEndogeny, res)
		r.sub.Units = append(r.sub.Units, unit)

		if !res.OK() {
			r.addEvidence(model.EvidenceCrawlNote, u, "Failed to fetch issue page; unit could not be identified.", "issue-fetch-error")
			continue
		}
		r.addEvidence(model.EvidenceIssueListing, u, strings.Join(extract.TopLines(res.Text, 4), " | "), "issue-page-top-lines")

		doc := documentOf(res)
		links := r.adapters.FindAdapter(doc).ArticleLinks(doc, r.sub.JournalHomepageURL, r.cfg.MaxLinkCandidates)
		articles := r.collectArticles(ctx, unit.ID, links, nil, func(extract.ArticleInfo) bool { return true })
		r.sub.Articles = append(r.sub.Articles, articles...)
		if len(articles) == 0 {
			r.addEvidence(model.EvidenceCrawlNote, u, "No research articles could be extracted from this issue.", "issue-articles-empty")
		}
	}
}

// buildContinuousUnit measures research articles published in the trailing
// window. Feeds contribute entries directly; listing pages contribute links.
func (r *run) buildContinuousUnit(ctx context.Context) {
	listings := append(append([]string{}, r.sub.URLsFor(model.HintLatestContent)...), r.sub.URLsFor(model.HintArchives)...)
	if len(listings) == 0 {
		return
	}

	now := r.sub.CrawlTimestamp
	windowStart := now.AddDate(0, 0, -r.cfg.ContinuousWindowDays)
	unit := model.Unit{
		ID:         fmt.Sprintf("trailing-%dd", r.cfg.ContinuousWindowDays),
		Label:      fmt.Sprintf("Trailing %d days to %s", r.cfg.ContinuousWindowDays, now.Format("2006-01-02")),
		WindowType:   model.WindowTrailingPeriod,
		SourceURL:    listings[0],
		Unidentified: true,
	}

	var (
		links   []string
		direct  []model.Article
		issues  []string
		skipped exclusions
	)
	for _, u := range listings {
		res := r.results[u]
		if res == nil {
			continue
		}
		hint := model.HintLatestContent
		if !contains(r.sub.URLsFor(model.HintLatestContent), u) {
			hint = model.HintArchives
		}
		r.noteFetch(hint, res)
		if !res.OK() {
			continue
		}
		unit.Unidentified = false

		if extract.IsFeed(res.ContentType, res.Body) {
			entries, err := extract.ParseFeed(res.Body)
			if err != nil {
				r.addEvidence(model.EvidenceCrawlNote, u, fmt.Sprintf("Feed could not be parsed: %v", err), "feed-parse-error")
				continue
			}
			for _, entry := range entries {
				if len(entry.Authors) == 0 || entry.Published.IsZero() {
					links = append(links, entry.Link)
					continue
				}
				if !extract.IsResearchArticle("", entry.Title) {
					continue
				}
				if entry.Published.Before(windowStart) || entry.Published.After(now) {
					skipped.outside++
					continue
				}
				direct = append(direct, model.Article{
					Title:         entry.Title,
					URL:           entry.Link,
					Authors:       entry.Authors,
					UnitID:        unit.ID,
					PublishedDate: entry.Published.Format("2006-01-02"),
				})
			}
			continue
		}

		doc := documentOf(res)
		adapter := r.adapters.FindAdapter(doc)
		links = append(links, adapter.ArticleLinks(doc, r.sub.JournalHomepageURL, r.cfg.MaxLinkCandidates)...)
		if hint == model.HintArchives {
			issues = append(issues, adapter.IssueLinks(doc, r.sub.JournalHomepageURL, issuesPerReview)...)
		}
		r.addEvidence(model.EvidenceIssueListing, u, strings.Join(extract.TopLines(res.Text, 4), " | "), "issue-page-top-lines")
	}

	// Recent issues of an archive page also list articles of the window
	r.fetchAll(ctx, issues)
	for _, u := range issues {
		res := r.results[u]
		if !res.OK() {
			continue
		}
		doc := documentOf(res)
		links = append(links, r.adapters.FindAdapter(doc).ArticleLinks(doc, r.sub.JournalHomepageURL, r.cfg.MaxLinkCandidates)...)
	}

	links = dedupeStrings(links)
	if len(links) > r.cfg.MaxLinkCandidates {
		links = links[:r.cfg.MaxLinkCandidates]
	}

	articles := r.collectArticles(ctx, unit.ID, links, direct, func(info extract.ArticleInfo) bool {
		start, end, ok := ParsePublicationDate(info.PublishedDate)
		if !ok {
			skipped.undated++
			return false
		}
		if start.After(now) || end.Before(windowStart) {
			skipped.outside++
			return false
		}
		return true
	})

	r.sub.Units = append(r.sub.Units, unit)
	r.sub.Articles = append(r.sub.Articles, articles...)
	if skipped.undated > 0 {
		r.addEvidence(model.EvidenceCrawlNote, unit.SourceURL,
			fmt.Sprintf("%d article(s) excluded from the trailing window: no publication date.", skipped.undated), "continuous-window")
	}
	if skipped.outside > 0 {
		r.addEvidence(model.EvidenceCrawlNote, unit.SourceURL,
			fmt.Sprintf("%d article(s) excluded: published outside the trailing window.", skipped.outside), "continuous-window")
	}
}

type exclusions struct {
	undated int
	outside int
}

// collectArticles fetches article pages in batches until limit research
// articles were accepted or links run out
func (r *run) collectArticles(ctx context.Context, unitID string, links []string, seed []model.Article, accept func(extract.ArticleInfo) bool) []model.Article {
	limit := r.cfg.MaxArticlesPerUnit
	articles := make([]model.Article, 0, limit)
	seen := make(map[string]bool)
	for _, a := range seed {
		if len(articles) >= limit || seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		articles = append(articles, a)
	}

	var pending []string
	for _, link := range links {
		if link != "" && !seen[link] {
			pending = append(pending, link)
		}
	}

	for len(pending) > 0 && len(articles) < limit && ctx.Err() == nil {
		n := max(limit-len(articles), r.workers)
		batch := pending[:min(n, len(pending))]
		pending = pending[len(batch):]
		r.fetchAll(ctx, batch)

		for _, link := range batch {
			if len(articles) >= limit {
				break
			}
			res := r.results[link]
			if !res.OK() {
				continue
			}
			info, ok := extract.ArticleFromDocument(documentOf(res))
			if !ok || seen[link] || !accept(info) {
				continue
			}
			seen[link] = true
			articles = append(articles, model.Article{
				Title:         info.Title,
				URL:           link,
				Authors:       info.Authors,
				ArticleType:   info.ArticleType,
				UnitID:        unitID,
				PublishedDate: info.PublishedDate,
			})
		}
	}
	return articles
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func dedupeStrings(values []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, v := range values {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

var (
	fullDateLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"2006/01/02",
		"2006.01.02",
		"January 2, 2006",
		"Jan 2, 2006",
		"2 January 2006",
		"02 Jan 2006",
		time.RFC1123Z,
		time.RFC1123,
	}
	monthLayouts = []string{"2006-01", "2006/01", "January 2006", "Jan 2006"}
)

// ParsePublicationDate parses an article date into the period it denotes.
// A full date is one day; a month or bare year covers the whole period.
func ParsePublicationDate(value string) (start, end time.Time, ok bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, time.Time{}, false
	}
	for _, layout := range fullDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return day, day.AddDate(0, 0, 1).Add(-time.Nanosecond), true
		}
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
			return first, first.AddDate(0, 1, 0).Add(-time.Nanosecond), true
		}
	}
	if t, err := time.Parse("2006", value); err == nil {
		first := time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
		return first, first.AddDate(1, 0, 0).Add(-time.Nanosecond), true
	}
	return time.Time{}, time.Time{}, false
}
