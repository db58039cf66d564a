package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// ISSNRuleID identifies the ISSN consistency rule
const ISSNRuleID = "doaj.issn_consistency.v1"

var (
	issnPattern   = regexp.MustCompile(`\b\d{4}-\d{3}[0-9Xx]\b`)
	issnFallbacks = []string{model.HintPublisher, model.HintOpenAccess, model.HintPeerReview}
)

// ValidISSN reports whether an ISSN has a correct mod-11 check digit
func ValidISSN(issn string) bool {
	var digits []rune
	for _, r := range strings.ToUpper(issn) {
		if (r >= '0' && r <= '9') || r == 'X' {
			digits = append(digits, r)
		}
	}
	if len(digits) != 8 {
		return false
	}
	total := 0
	for i, r := range digits[:7] {
		if r == 'X' {
			return false
		}
		total += int(r-'0') * (8 - i)
	}
	check := (11 - total%11) % 11
	expected := rune('0' + check)
	if check == 10 {
		expected = 'X'
	}
	return digits[7] == expected
}

// FindISSNs returns the distinct ISSN-shaped values in text, sorted
func FindISSNs(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range issnPattern.FindAllString(text, -1) {
		m = strings.ToUpper(m)
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// formatISSN normalises a declared ISSN to NNNN-NNNC
func formatISSN(issn string) string {
	compact := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(issn)))
	if len(compact) != 8 {
		return strings.TrimSpace(issn)
	}
	return compact[:4] + "-" + compact[4:]
}

// ISSNEvaluator checks declared ISSNs against those printed on-site. Hint
// defaults to issn_consistency.
type ISSNEvaluator struct {
	Hint string
}

// BindHint reads ISSNs from the pages of hint
func (e ISSNEvaluator) BindHint(hint string) Evaluator {
	return ISSNEvaluator{Hint: hint}
}

// Evaluate compares declared and discovered ISSNs. The electronic ISSN is
// preferred when both are declared.
func (e ISSNEvaluator) Evaluate(sub *model.StructuredSubmission) model.RuleVerdict {
	hint := e.Hint
	if hint == "" {
		hint = model.HintISSN
	}

	declared := formatISSN(sub.DeclaredISSN.Electronic)
	kind := "electronic"
	if declared == "" {
		declared = formatISSN(sub.DeclaredISSN.Print)
		kind = "print"
	}

	pages := pagesWithFallback(sub, hint, issnFallbacks)
	verdict := model.RuleVerdict{
		RuleID:       ISSNRuleID,
		RuleHint:     hint,
		Implemented:  true,
		EvidenceURLs: pageURLs(pages),
	}

	for _, d := range []struct{ kind, value string }{
		{"electronic", formatISSN(sub.DeclaredISSN.Electronic)},
		{"print", formatISSN(sub.DeclaredISSN.Print)},
	} {
		if d.value != "" && !ValidISSN(d.value) {
			verdict.Result = model.ResultFail
			verdict.Confidence = 0.9
			verdict.Notes = []string{fmt.Sprintf("Declared %s ISSN %s has an invalid check digit.", d.kind, d.value)}
			return verdict
		}
	}

	if len(pages) == 0 {
		return MissingPolicyVerdict(sub, ISSNRuleID, hint, issnFallbacks)
	}

	var text strings.Builder
	for _, page := range pages {
		text.WriteString(page.Title + "\n" + page.Text + "\n")
	}
	found := FindISSNs(text.String())
	for _, issn := range found {
		url := pages[0].URL
		for _, page := range pages {
			if strings.Contains(strings.ToUpper(page.Text), issn) {
				url = page.URL
				break
			}
		}
		verdict.Matches = append(verdict.Matches, model.SignalMatch{Signal: "issn", URL: url, Snippet: issn})
	}

	if declared != "" {
		if contains(found, declared) {
			verdict.Result = model.ResultPass
			verdict.Confidence = 0.88
			verdict.Notes = []string{fmt.Sprintf("Declared %s ISSN %s is valid and was found on-site.", kind, declared)}
			return verdict
		}
		verdict.Result = model.ResultNeedHumanReview
		if len(found) == 0 {
			verdict.Confidence = 0.45
			verdict.Notes = []string{fmt.Sprintf("Declared %s ISSN %s is valid but no ISSN was detected in the provided pages.", kind, declared)}
			return verdict
		}
		verdict.Confidence = 0.5
		verdict.Notes = []string{fmt.Sprintf("Declared %s ISSN %s is valid but was not found on-site; pages list %s.",
			kind, declared, strings.Join(first(found, 4), ", "))}
		return verdict
	}

	if len(found) == 0 {
		verdict.Result = model.ResultNeedHumanReview
		verdict.Confidence = 0.42
		verdict.Notes = []string{"No ISSN value was detected in the provided pages."}
		return verdict
	}

	var valid, invalid []string
	for _, issn := range found {
		if ValidISSN(issn) {
			valid = append(valid, issn)
		} else {
			invalid = append(invalid, issn)
		}
	}
	switch {
	case len(invalid) == 0:
		verdict.Result = model.ResultPass
		verdict.Confidence = 0.8
		verdict.Notes = []string{fmt.Sprintf("Detected valid ISSN values on-site: %s.", strings.Join(first(valid, 4), ", "))}
	case len(valid) == 0:
		verdict.Result = model.ResultFail
		verdict.Confidence = 0.86
		verdict.Notes = []string{fmt.Sprintf("Detected ISSN-like values but check digits are invalid: %s.", strings.Join(first(invalid, 4), ", "))}
	default:
		verdict.Result = model.ResultNeedHumanReview
		verdict.Confidence = 0.53
		verdict.Notes = []string{"Mixed valid and invalid ISSN values were detected; consistency needs manual confirmation."}
	}
	return verdict
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func first(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}
