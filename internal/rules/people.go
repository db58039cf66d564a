package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/doaj-reviewer/internal/endogeny"
	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// Rule ids of the role-list evaluators
const (
	BoardRuleID    = "doaj.editorial_board.v1"
	ReviewerRuleID = "doaj.reviewer_composition.v1"
)

var (
	affiliationPattern = regexp.MustCompile(`(?i)\b(university|institute|department|faculty|hospital|school|affiliation|country)\b`)
	noBoardPattern     = regexp.MustCompile(`(?i)\bno\s+editorial\s+board\b|\beditorial\s+board\s+not\s+available\b`)
)

// distinctPeople dedupes people by normalised name, keeping the first entry
func distinctPeople(people []model.RolePerson) []model.RolePerson {
	var out []model.RolePerson
	seen := make(map[string]bool)
	for _, p := range people {
		key := endogeny.NormalizeName(p.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

// institutionCounts counts people per normalised institution. People
// without an institution are not counted.
func institutionCounts(people []model.RolePerson) (map[string]int, int) {
	counts := make(map[string]int)
	known := 0
	for _, p := range people {
		inst := strings.ToLower(strings.Join(strings.Fields(p.Institution), " "))
		if inst == "" {
			continue
		}
		counts[inst]++
		known++
	}
	return counts, known
}

// BoardEvaluator checks the editorial board size and editor presence.
// Institutional composition is reported but never fails the rule.
type BoardEvaluator struct {
	MinMembers int
	Hint       string // defaults to editorial_board
}

// BindHint reads board page text from the pages of hint
func (b BoardEvaluator) BindHint(hint string) Evaluator {
	b.Hint = hint
	return b
}

// Evaluate decides the editorial board rule from role people and page text
func (b BoardEvaluator) Evaluate(sub *model.StructuredSubmission) model.RuleVerdict {
	hint := b.Hint
	if hint == "" {
		hint = model.HintEditorialBoard
	}
	pages := sub.PagesFor(hint)
	board := distinctPeople(sub.PeopleWithRole(model.RoleEditor, model.RoleBoardMember))
	if len(pages) == 0 && len(board) == 0 {
		return MissingPolicyVerdict(sub, BoardRuleID, hint, nil)
	}

	minMembers := max(1, b.MinMembers)
	verdict := model.RuleVerdict{
		RuleID:       BoardRuleID,
		RuleHint:     hint,
		Implemented:  true,
		EvidenceURLs: pageURLs(pages),
	}
	if len(verdict.EvidenceURLs) == 0 {
		verdict.EvidenceURLs = dedupe(sub.URLsFor(hint))
	}

	hasEditor := false
	hasAffiliationField := false
	for _, p := range board {
		hasEditor = hasEditor || p.Role == model.RoleEditor
		hasAffiliationField = hasAffiliationField || strings.TrimSpace(p.Institution) != ""
	}
	var text strings.Builder
	for _, page := range pages {
		text.WriteString(page.Title + "\n" + page.Text + "\n")
	}
	hasAffiliationText := affiliationPattern.MatchString(text.String())
	noBoard := noBoardPattern.MatchString(text.String())

	switch {
	case len(board) == 0 && noBoard:
		verdict.Result, verdict.Confidence = model.ResultFail, 0.87
		verdict.Notes = []string{"Editorial board appears unavailable."}
	case len(board) >= minMembers && hasEditor && (hasAffiliationField || hasAffiliationText):
		verdict.Result, verdict.Confidence = model.ResultPass, 0.76
		if hasAffiliationField && hasAffiliationText {
			verdict.Confidence = 0.84
		}
		verdict.Notes = []string{"Editorial board members and editor roles are available with affiliation indicators."}
	case len(board) >= 2 && hasEditor:
		verdict.Result, verdict.Confidence = model.ResultNeedHumanReview, 0.63
		verdict.Notes = []string{"Editorial board names are present but affiliation evidence is weak."}
	case len(board) == 0:
		verdict.Result, verdict.Confidence = model.ResultFail, 0.79
		verdict.Notes = []string{"No editorial board members could be identified."}
	default:
		verdict.Result, verdict.Confidence = model.ResultNeedHumanReview, 0.56
		verdict.Notes = []string{"Editorial board information is incomplete or ambiguous."}
	}

	verdict.Notes = append(verdict.Notes, fmt.Sprintf("Identified %d editor/board member(s); minimum expected is %d.", len(board), minMembers))
	if counts, known := institutionCounts(board); known > 0 {
		verdict.Notes = append(verdict.Notes, fmt.Sprintf(
			"Board composition (informational): %d distinct institution(s) across %d member(s) with known affiliation.", len(counts), known))
	}
	return verdict
}

// ReviewerEvaluator checks the reviewer count and that no single
// institution dominates the reviewer list
type ReviewerEvaluator struct {
	MinCount            int
	MaxInstitutionShare float64
}

// Evaluate decides the reviewer composition rule
func (r ReviewerEvaluator) Evaluate(sub *model.StructuredSubmission) model.RuleVerdict {
	pages := sub.PagesFor(model.HintReviewers)
	reviewers := distinctPeople(sub.PeopleWithRole(model.RoleReviewer))
	if len(pages) == 0 && len(reviewers) == 0 {
		return MissingPolicyVerdict(sub, ReviewerRuleID, model.HintReviewers, nil)
	}

	minCount := max(1, r.MinCount)
	maxShare := r.MaxInstitutionShare
	if maxShare <= 0 || maxShare > 1 {
		maxShare = model.DefaultConfig().Rules.ReviewerMaxInstitutionShare
	}

	verdict := model.RuleVerdict{
		RuleID:       ReviewerRuleID,
		RuleHint:     model.HintReviewerComp,
		Implemented:  true,
		EvidenceURLs: pageURLs(pages),
	}
	if len(verdict.EvidenceURLs) == 0 {
		verdict.EvidenceURLs = dedupe(sub.URLsFor(model.HintReviewers))
	}

	if len(reviewers) == 0 {
		verdict.Result, verdict.Confidence = model.ResultNeedHumanReview, 0.4
		verdict.Notes = []string{"Reviewer page text was extracted but no reviewer names could be identified."}
		return verdict
	}
	if len(reviewers) < minCount {
		verdict.Result, verdict.Confidence = model.ResultFail, 0.7
		verdict.Notes = []string{fmt.Sprintf("Only %d reviewer(s) identified; at least %d are required.", len(reviewers), minCount)}
		return verdict
	}

	counts, known := institutionCounts(reviewers)
	if known == 0 {
		verdict.Result, verdict.Confidence = model.ResultNeedHumanReview, 0.55
		verdict.Notes = []string{fmt.Sprintf("%d reviewer(s) identified but no affiliations were found; institutional composition cannot be computed.", len(reviewers))}
		return verdict
	}

	top, topCount := "", 0
	for inst, n := range counts {
		if n > topCount || (n == topCount && inst < top) {
			top, topCount = inst, n
		}
	}
	share := float64(topCount) / float64(known)
	detail := fmt.Sprintf("Largest institution share is %.2f (%d of %d reviewers with known affiliation: %s); maximum allowed is %.2f.",
		share, topCount, known, top, maxShare)

	if share > maxShare {
		verdict.Result, verdict.Confidence = model.ResultFail, 0.8
		verdict.Notes = []string{"Reviewers are concentrated in a single institution.", detail}
		return verdict
	}
	verdict.Result, verdict.Confidence = model.ResultPass, 0.78
	if known*2 < len(reviewers) {
		verdict.Confidence = 0.66
	}
	verdict.Notes = []string{fmt.Sprintf("%d reviewer(s) identified with diverse institutional composition.", len(reviewers)), detail}
	return verdict
}
