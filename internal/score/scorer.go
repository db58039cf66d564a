package score

import (
	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// Decision reasons
const (
	ReasonFail       = "At least one must-rule returned fail."
	ReasonReview     = "No must-rule failed, but at least one must-rule requires human review."
	ReasonPass       = "All must-rules passed automatically."
	ReasonNoMustRule = "No must-rule verdicts were produced."
)

// Decision is the aggregated outcome of a review
type Decision struct {
	Result              model.Result
	Reason              string
	MustCounts          model.ResultCounts
	SupplementaryCounts model.ResultCounts
}

// Scorer aggregates rule verdicts into an overall result
type Scorer struct{}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// Calculate aggregates must verdicts and tallies both verdict lists.
// Supplementary verdicts are counted but never change the result.
func (s *Scorer) Calculate(checks, supplementary []model.RuleVerdict) Decision {
	result := Aggregate(checks)
	return Decision{
		Result:              result,
		Reason:              reason(result, checks),
		MustCounts:          Count(checks),
		SupplementaryCounts: Count(supplementary),
	}
}

// Aggregate applies the fail > need_human_review > pass precedence over the
// must verdicts of the list. A list without must verdicts needs review.
func Aggregate(verdicts []model.RuleVerdict) model.Result {
	must := 0
	review := false
	for _, v := range verdicts {
		if !v.Must {
			continue
		}
		must++
		switch v.Result {
		case model.ResultFail:
			return model.ResultFail
		case model.ResultPass:
		default:
			review = true
		}
	}
	if must == 0 || review {
		return model.ResultNeedHumanReview
	}
	return model.ResultPass
}

// Count tallies verdicts by result. Unknown results count as need_human_review.
func Count(verdicts []model.RuleVerdict) model.ResultCounts {
	var c model.ResultCounts
	for _, v := range verdicts {
		switch v.Result {
		case model.ResultPass:
			c.Pass++
		case model.ResultFail:
			c.Fail++
		default:
			c.NeedHumanReview++
		}
	}
	return c
}

func reason(result model.Result, checks []model.RuleVerdict) string {
	switch result {
	case model.ResultFail:
		return ReasonFail
	case model.ResultPass:
		return ReasonPass
	}
	for _, v := range checks {
		if v.Must {
			return ReasonReview
		}
	}
	return ReasonNoMustRule
}
