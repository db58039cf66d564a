package model

import "time"

// ReviewSummary is the terminal artifact of a review run
type ReviewSummary struct {
	RunID          string    `json:"run_id"`
	SubmissionID   string    `json:"submission_id"`
	HomepageURL    string    `json:"journal_homepage_url"`
	RulesetID      string    `json:"ruleset_id"`
	RulesetVersion string    `json:"ruleset_version"`
	GeneratedAt    time.Time `json:"generated_at"`

	OverallResult  Result `json:"overall_result"`
	DecisionReason string `json:"decision_reason"`

	MustCounts          ResultCounts  `json:"must_counts"`
	SupplementaryCounts ResultCounts  `json:"supplementary_counts"`
	Checks              []RuleVerdict `json:"checks"`               // Must rules, ruleset order
	SupplementaryChecks []RuleVerdict `json:"supplementary_checks"` // Never aggregated
}

// ResultCounts tallies verdicts by result
type ResultCounts struct {
	Pass            int `json:"pass"`
	Fail            int `json:"fail"`
	NeedHumanReview int `json:"need_human_review"`
}

// AllVerdicts returns must then supplementary verdicts
func (s *ReviewSummary) AllVerdicts() []RuleVerdict {
	out := make([]RuleVerdict, 0, len(s.Checks)+len(s.SupplementaryChecks))
	out = append(out, s.Checks...)
	return append(out, s.SupplementaryChecks...)
}

// Verdict returns the verdict for a rule id
func (s *ReviewSummary) Verdict(ruleID string) (RuleVerdict, bool) {
	for _, v := range s.AllVerdicts() {
		if v.RuleID == ruleID {
			return v, true
		}
	}
	return RuleVerdict{}, false
}
