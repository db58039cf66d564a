package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// DecodeRaw parses and validates a raw submission document
func DecodeRaw(data []byte) (*model.RawSubmission, error) {
	var raw model.RawSubmission
	if err := decodeStrict(data, &raw); err != nil {
		return nil, err
	}
	if err := Raw(&raw); err != nil {
		return nil, err
	}
	return &raw, nil
}

// DecodeStructured parses and validates a structured submission document
func DecodeStructured(data []byte) (*model.StructuredSubmission, error) {
	var sub model.StructuredSubmission
	if err := decodeStrict(data, &sub); err != nil {
		return nil, err
	}
	if err := Structured(&sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMalformedSchema, err)
	}
	return nil
}

// problems collects schema violations so one error reports all of them
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p problems) err(what string) error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", model.ErrMalformedSchema, what, strings.Join(p, "; "))
}

// Raw checks a raw submission before any fetch is issued. hints are the
// rule hints of the active ruleset; they are accepted as source fields.
func Raw(raw *model.RawSubmission, hints ...string) error {
	if raw == nil {
		return fmt.Errorf("%w: raw submission is nil", model.ErrMalformedSchema)
	}
	var p problems

	checkHomepage(&p, raw.JournalHomepageURL)
	checkModel(&p, raw.PublicationModel)
	if raw.JSMode != "" && !raw.JSMode.Valid() {
		p.addf("js_mode %q is not one of auto, on, off", raw.JSMode)
	}

	known := model.KnownSourceFields(hints...)
	for _, field := range sortedKeys(raw.SourceURLs) {
		if !known[field] {
			p.addf("source_urls has unknown field %q", field)
			continue
		}
		for _, u := range raw.SourceURLs[field] {
			if strings.TrimSpace(u) == "" {
				continue
			}
			if !httpURL(u) {
				p.addf("source_urls.%s: %q is not an absolute http(s) URL", field, u)
			}
		}
	}
	for _, field := range sortedKeys(raw.ManualFallback) {
		if !known[field] {
			p.addf("manual_fallback has unknown field %q", field)
			continue
		}
		payload := raw.ManualFallback[field]
		if strings.TrimSpace(payload.Text) == "" && len(payload.PDFBytes) == 0 {
			p.addf("manual_fallback.%s needs text or pdf_bytes", field)
		}
	}
	return p.err("raw submission")
}

// Structured checks a pre-built structured submission. hints are the rule
// hints of the active ruleset; policy pages may be bound to any of them.
func Structured(sub *model.StructuredSubmission, hints ...string) error {
	if sub == nil {
		return fmt.Errorf("%w: structured submission is nil", model.ErrMalformedSchema)
	}
	var p problems

	checkHomepage(&p, sub.JournalHomepageURL)
	checkModel(&p, sub.PublicationModel)

	known := model.KnownSourceFields(hints...)
	for _, field := range sortedKeys(sub.SourceURLs) {
		if !known[field] {
			p.addf("source_urls has unknown field %q", field)
		}
	}
	for i, page := range sub.PolicyPages {
		if !known[page.RuleHint] {
			p.addf("policy_pages[%d] has unknown rule_hint %q", i, page.RuleHint)
		}
		if page.URL == "" {
			p.addf("policy_pages[%d] has no url", i)
		}
		if page.Source != "" && page.Source != model.SourceFetch && page.Source != model.SourceManual {
			p.addf("policy_pages[%d] has unknown source %q", i, page.Source)
		}
	}
	for i, person := range sub.RolePeople {
		switch person.Role {
		case model.RoleEditor, model.RoleBoardMember, model.RoleReviewer:
		default:
			p.addf("role_people[%d] has unknown role %q", i, person.Role)
		}
		if strings.TrimSpace(person.Name) == "" {
			p.addf("role_people[%d] has no name", i)
		}
	}

	units := make(map[string]bool, len(sub.Units))
	for i, unit := range sub.Units {
		if unit.ID == "" {
			p.addf("units[%d] has no unit_id", i)
			continue
		}
		if units[unit.ID] {
			p.addf("units[%d] duplicates unit_id %q", i, unit.ID)
		}
		units[unit.ID] = true
		if unit.WindowType != model.WindowIssue && unit.WindowType != model.WindowTrailingPeriod {
			p.addf("units[%d] has unknown window_type %q", i, unit.WindowType)
		}
	}
	for i, article := range sub.Articles {
		if !units[article.UnitID] {
			p.addf("articles[%d] references unknown unit %q", i, article.UnitID)
		}
	}
	return p.err("structured submission")
}

func checkHomepage(p *problems, homepage string) {
	switch {
	case strings.TrimSpace(homepage) == "":
		p.addf("journal_homepage_url is required")
	case !httpURL(homepage):
		p.addf("journal_homepage_url %q is not an absolute http(s) URL", homepage)
	}
}

func checkModel(p *problems, m model.PublicationModel) {
	if m != model.ModelIssueBased && m != model.ModelContinuous {
		p.addf("publication_model %q is not one of issue_based, continuous", m)
	}
}

func httpURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
