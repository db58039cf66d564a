package intake

import (
	"fmt"
	"strings"

	"github.com/ppiankov/doaj-reviewer/internal/endogeny"
	"github.com/ppiankov/doaj-reviewer/internal/extract"
	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// buildPolicyPages binds fetched or manually supplied text to each policy hint
func (r *run) buildPolicyPages() {
	for _, hint := range r.policy {
		urls := r.sub.URLsFor(hint)
		found := false
		for _, u := range urls {
			res := r.results[u]
			if res == nil {
				continue
			}
			r.noteFetch(hint, res)
			if res.OK() && strings.TrimSpace(res.Text) != "" {
				r.addPolicyPage(hint, u, res.Title, res.Text, model.SourceFetch)
				r.addEvidence(model.EvidencePolicyText, u,
					strings.Join(extract.TopLines(res.Text, 4), " | "), "policy-page-"+hint)
				found = true
				continue
			}
			if res.Status == model.FetchError {
				r.addEvidence(model.EvidenceCrawlNote, u,
					fmt.Sprintf("Failed to fetch policy page for %s.", hint), "policy-fetch-error")
			}
		}
		if found {
			continue
		}
		if text, ok := r.manualText(hint); ok {
			u := manualURL(hint, urls)
			r.addPolicyPage(hint, u, "", text, model.SourceManual)
			r.addEvidence(model.EvidenceManualFallback, u, text, "manual-fallback-"+hint)
		}
	}
}

func (r *run) addPolicyPage(hint, u, title, text string, source model.PageSource) {
	r.sub.PolicyPages = append(r.sub.PolicyPages, model.PolicyPage{
		RuleHint: hint,
		URL:      u,
		Title:    title,
		Text:     truncateRunes(text, r.cfg.MaxPolicyChars),
		Source:   source,
	})
}

// roleFields maps role page fields to the default role of their listings
var roleFields = []struct {
	hint     string
	role     model.Role
	evidence model.EvidenceKind
	locator  string
}{
	{model.HintEditorialBoard, model.RoleBoardMember, model.EvidenceEditorList, "editorial-page-top-lines"},
	{model.HintReviewers, model.RoleReviewer, model.EvidenceReviewerList, "reviewer-page-top-lines"},
}

// buildRolePeople extracts people from editorial and reviewer pages. Role
// page text is also kept as a policy page for the board and reviewer rules.
func (r *run) buildRolePeople() {
	provided := false
	for _, field := range roleFields {
		urls := r.sub.URLsFor(field.hint)
		found := false
		for _, u := range urls {
			provided = true
			res := r.results[u]
			if res == nil {
				continue
			}
			r.noteFetch(field.hint, res)
			if !res.OK() || strings.TrimSpace(res.Text) == "" {
				if res.Status == model.FetchError {
					r.addEvidence(model.EvidenceCrawlNote, u,
						fmt.Sprintf("Failed to fetch role page for %s.", field.hint), "role-fetch-error")
				}
				continue
			}
			found = true
			doc := documentOf(res)
			r.addPeople(extract.ExtractRolePeople(doc, field.role))
			r.addPolicyPage(field.hint, u, res.Title, res.Text, model.SourceFetch)
			r.addEvidence(field.evidence, u, strings.Join(extract.TopLines(res.Text, 4), " | "), field.locator)
		}
		if found {
			continue
		}
		if text, ok := r.manualText(field.hint); ok {
			provided = true
			u := manualURL(field.hint, urls)
			doc := &extract.Document{URL: u, Text: text}
			r.addPeople(extract.ExtractRolePeople(doc, field.role))
			r.addPolicyPage(field.hint, u, "", text, model.SourceManual)
			r.addEvidence(model.EvidenceManualFallback, u, text, "manual-fallback-"+field.hint)
		}
	}

	if provided && len(r.sub.RolePeople) == 0 {
		r.addEvidence(model.EvidenceCrawlNote, "",
			"No editor/board/reviewer names could be extracted from provided role pages.", "role-people-empty")
	}
}

// addPeople appends people not yet seen under the same normalised name and role
func (r *run) addPeople(people []model.RolePerson) {
	for _, person := range people {
		key := endogeny.NormalizeName(person.Name) + "|" + string(person.Role)
		if r.people[key] {
			continue
		}
		r.people[key] = true
		r.sub.RolePeople = append(r.sub.RolePeople, person)
	}
}

// manualText returns usable manual fallback text for a field. Unreadable
// uploads produce an upload warning and no text.
func (r *run) manualText(hint string) (string, bool) {
	payload, ok := r.raw.ManualFallback[hint]
	if !ok {
		return "", false
	}
	if text := strings.TrimSpace(payload.Text); text != "" {
		return extract.NormalizeText(text), true
	}
	if len(payload.PDFBytes) == 0 {
		r.addEvidence(model.EvidenceUploadWarning, "",
			fmt.Sprintf("Manual fallback for %s is empty.", hint), "manual-upload-"+hint)
		return "", false
	}

	text, err := extract.PDFText(payload.PDFBytes)
	if err != nil {
		r.addEvidence(model.EvidenceUploadWarning, "",
			fmt.Sprintf("Manual PDF for %s could not be read (%s): %v", hint, model.KindMalformedManualUpload, err),
			"manual-upload-"+hint)
		r.logger.Warn("manual pdf unreadable", "field", hint, "error", err)
		return "", false
	}
	if strings.TrimSpace(text) == "" {
		r.addEvidence(model.EvidenceUploadWarning, "",
			fmt.Sprintf("Manual PDF for %s yielded no usable text.", hint), "manual-upload-"+hint)
		return "", false
	}
	return text, true
}

// manualURL is the URL recorded for manual text: the submitted URL when one
// exists, otherwise a manual: pseudo URL
func manualURL(hint string, urls []string) string {
	if len(urls) > 0 {
		return urls[0]
	}
	return "manual:" + hint
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
