package rules

import (
	"fmt"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

const (
	missingConfidence = 0.25
	maxCrawlNotes     = 6
)

// pagesWithFallback returns the pages of hint, or of the first fallback
// hints when hint has none. All fallback pages are pooled.
func pagesWithFallback(sub *model.StructuredSubmission, hint string, fallbacks []string) []model.PolicyPage {
	if pages := sub.PagesFor(hint); len(pages) > 0 {
		return pages
	}
	var pages []model.PolicyPage
	for _, fb := range fallbacks {
		pages = append(pages, sub.PagesFor(fb)...)
	}
	return pages
}

// urlsWithFallback returns the submitted URLs of hint, or of the first
// fallback hint that has any
func urlsWithFallback(sub *model.StructuredSubmission, hint string, fallbacks []string) []string {
	if urls := sub.URLsFor(hint); len(urls) > 0 {
		return urls
	}
	for _, fb := range fallbacks {
		if urls := sub.URLsFor(fb); len(urls) > 0 {
			return urls
		}
	}
	return nil
}

func pageURLs(pages []model.PolicyPage) []string {
	urls := make([]string, 0, len(pages))
	for _, page := range pages {
		urls = append(urls, page.URL)
	}
	return dedupe(urls)
}

// wafNotes returns the challenge notes recorded for any of the hints
func wafNotes(sub *model.StructuredSubmission, hints ...string) []model.EvidenceItem {
	locators := make(map[string]bool, len(hints))
	for _, h := range hints {
		locators[model.WAFLocator(h)] = true
	}
	var out []model.EvidenceItem
	for _, item := range sub.Evidence {
		if item.Kind == model.EvidenceWAFNote && locators[item.LocatorHint] {
			out = append(out, item)
		}
	}
	return out
}

// MissingPolicyVerdict is the verdict of a rule whose policy text could not
// be obtained. Challenge notes are carried verbatim.
func MissingPolicyVerdict(sub *model.StructuredSubmission, ruleID, hint string, fallbacks []string) model.RuleVerdict {
	verdict := model.RuleVerdict{
		RuleID:       ruleID,
		RuleHint:     hint,
		Implemented:  true,
		Result:       model.ResultNeedHumanReview,
		Confidence:   missingConfidence,
		Notes:        []string{fmt.Sprintf("No policy text was extracted for `%s` URLs.", hint)},
		EvidenceURLs: dedupe(urlsWithFallback(sub, hint, fallbacks)),
	}
	waf := wafNotes(sub, append([]string{hint}, fallbacks...)...)
	for _, note := range waf {
		verdict.Notes = append(verdict.Notes, note.Excerpt)
		verdict.EvidenceURLs = dedupe(append(verdict.EvidenceURLs, note.URL))
	}
	if len(waf) > 0 {
		verdict.EvidenceStatus = model.EvidenceBlocked
	}
	return verdict
}

// relatedHints lists the source fields whose pages and notes back a rule
func relatedHints(hint string) []string {
	switch hint {
	case model.HintEndogeny:
		return []string{model.HintEndogeny, model.HintEditorialBoard, model.HintReviewers, model.HintLatestContent, model.HintArchives}
	case model.HintEditorialBoard:
		return []string{model.HintEditorialBoard, model.HintReviewers}
	case model.HintReviewerComp:
		return []string{model.HintReviewers}
	case "":
		return nil
	}
	return []string{hint}
}

// endogenyLocators are intake locators produced while building units
var endogenyLocators = map[string]bool{
	"issue-fetch-error":        true,
	"issue-articles-empty":     true,
	"continuous-window":        true,
	"feed-parse-error":         true,
	"role-people-empty":        true,
	"role-fetch-error":         true,
	"editorial-page-top-lines": true,
}

// annotate fills the evidence context of a verdict: evidence status and
// the related crawl notes
func annotate(sub *model.StructuredSubmission, verdict *model.RuleVerdict) {
	hints := relatedHints(verdict.RuleHint)

	var sources []string
	pages := 0
	for _, h := range hints {
		sources = append(sources, sub.URLsFor(h)...)
		pages += len(sub.PagesFor(h))
	}
	verdict.EvidenceURLs = dedupe(verdict.EvidenceURLs)
	if pages == 0 {
		evidence := make(map[string]bool, len(verdict.EvidenceURLs))
		for _, u := range verdict.EvidenceURLs {
			evidence[u] = true
		}
		for _, page := range sub.PolicyPages {
			if evidence[page.URL] {
				pages++
			}
		}
	}

	related := make(map[string]bool)
	for _, u := range append(append([]string{}, sources...), verdict.EvidenceURLs...) {
		related[u] = true
	}

	var notes []string
	blocked := false
	seen := make(map[string]bool)
	for _, item := range sub.Evidence {
		if !item.IsNote() {
			continue
		}
		include := endogenyLocators[item.LocatorHint] && verdict.RuleHint == model.HintEndogeny
		for _, h := range hints {
			include = include || item.RelatesTo(h, nil)
		}
		include = include || (item.URL != "" && related[item.URL])
		if !include {
			continue
		}
		if item.Kind == model.EvidenceWAFNote {
			blocked = true
		}
		note := item.Excerpt
		if item.URL != "" {
			note = item.URL + ": " + item.Excerpt
		}
		if seen[note] || len(notes) >= maxCrawlNotes {
			continue
		}
		seen[note] = true
		notes = append(notes, note)
	}
	verdict.CrawlNotes = notes

	if verdict.EvidenceStatus != "" {
		return
	}
	switch {
	case len(sources) == 0 && len(verdict.EvidenceURLs) == 0:
		verdict.EvidenceStatus = model.EvidenceURLNotProvided
	case pages > 0:
		verdict.EvidenceStatus = model.EvidencePolicyExtracted
	case blocked:
		verdict.EvidenceStatus = model.EvidenceBlocked
	case len(notes) > 0:
		verdict.EvidenceStatus = model.EvidenceNotesOnly
	default:
		verdict.EvidenceStatus = model.EvidenceURLWithoutText
	}
}

func dedupe(values []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
