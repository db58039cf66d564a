package model

import "strings"

// EvidenceKind classifies an evidence item retained for audit
type EvidenceKind string

const (
	EvidenceCrawlNote      EvidenceKind = "crawl_note"      // Fetch attempt outcome or intake remark
	EvidenceWAFNote        EvidenceKind = "waf_note"        // Page replaced by an anti-bot challenge
	EvidencePolicyText     EvidenceKind = "policy_text"     // Policy page text was extracted
	EvidenceManualFallback EvidenceKind = "manual_fallback" // Text supplied by the applicant
	EvidenceEditorList     EvidenceKind = "editor_list"
	EvidenceReviewerList   EvidenceKind = "reviewer_list"
	EvidenceIssueListing   EvidenceKind = "issue_listing"
	EvidenceUploadWarning  EvidenceKind = "upload_warning" // Manual upload could not be used
)

// EvidenceItem is a URL plus an excerpt justifying part of a verdict
type EvidenceItem struct {
	Kind        EvidenceKind `json:"kind"`
	URL         string       `json:"url"`
	Excerpt     string       `json:"excerpt"`
	LocatorHint string       `json:"locator_hint,omitempty"`
}

// WAFLocator is the locator hint of a challenge note for a rule hint
func WAFLocator(hint string) string {
	return "policy-waf-blocked-" + hint
}

// IsNote reports whether the item is a crawl or WAF note
func (e EvidenceItem) IsNote() bool {
	return e.Kind == EvidenceCrawlNote || e.Kind == EvidenceWAFNote || e.Kind == EvidenceUploadWarning
}

// RelatesTo reports whether a note belongs to a rule hint or one of its URLs
func (e EvidenceItem) RelatesTo(hint string, urls map[string]bool) bool {
	if hint != "" && strings.Contains(e.LocatorHint, hint) {
		return true
	}
	return e.URL != "" && urls[e.URL]
}
