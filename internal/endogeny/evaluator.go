package endogeny

import (
	"fmt"
	"math"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// RuleID identifies the endogeny rule in rulesets
const RuleID = "doaj.endogeny.v1"

// Evaluator computes endogeny metrics and the threshold decision
type Evaluator struct {
	cfg model.EndogenyConfig
}

// NewEvaluator creates an evaluator; zero config fields take defaults
func NewEvaluator(cfg model.EndogenyConfig) *Evaluator {
	defaults := model.DefaultConfig().Endogeny
	if cfg.Threshold <= 0 {
		cfg.Threshold = defaults.Threshold
	}
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = defaults.FuzzyThreshold
	}
	if cfg.MinContinuousArticles <= 0 {
		cfg.MinContinuousArticles = defaults.MinContinuousArticles
	}
	return &Evaluator{cfg: cfg}
}

// Evaluate matches authors against role people per unit and decides.
// Insufficient data outranks a threshold breach: an incomplete measurement
// is always routed to human review.
func (e *Evaluator) Evaluate(sub *model.StructuredSubmission) model.EndogenyReport {
	matcher := NewMatcher(sub.RolePeople, e.cfg.FuzzyThreshold)
	expected := expectedWindow(sub.PublicationModel)

	report := model.EndogenyReport{
		Metrics:         []model.EndogenyMetric{},
		MatchedArticles: []model.MatchedArticle{},
		Limitations:     []string{},
	}

	var unitURLs, articleURLs []string
	for _, unit := range sub.Units {
		if unit.WindowType != expected {
			continue
		}
		articles := sub.ArticlesIn(unit.ID)
		metric := model.EndogenyMetric{
			UnitID:      unit.ID,
			Label:       unit.Label,
			WindowType:  unit.WindowType,
			Denominator: len(articles),
			Threshold:   e.cfg.Threshold,
		}
		for _, article := range articles {
			match, ok := matcher.MatchArticle(article.Authors)
			if !ok {
				continue
			}
			metric.Numerator++
			report.MatchedArticles = append(report.MatchedArticles, model.MatchedArticle{
				UnitID:      unit.ID,
				Title:       article.Title,
				URL:         article.URL,
				Author:      match.Author,
				MatchedName: match.Person.Name,
				Role:        match.Person.Role,
				Method:      match.Method,
				Score:       match.Score,
			})
			articleURLs = append(articleURLs, article.URL)
		}
		if metric.Denominator > 0 {
			metric.Ratio = float64(metric.Numerator) / float64(metric.Denominator)
		}
		metric.Sufficient = e.unitSufficient(sub.PublicationModel, unit, metric)
		report.Metrics = append(report.Metrics, metric)
		unitURLs = append(unitURLs, unit.SourceURL)
		report.MaxRatio = math.Max(report.MaxRatio, metric.Ratio)
	}

	sufficient := e.classify(sub, report.Metrics, &report.Limitations)

	var result model.Result
	switch {
	case !sufficient:
		result = model.ResultNeedHumanReview
	case report.MaxRatio > e.cfg.Threshold:
		result = model.ResultFail
	default:
		result = model.ResultPass
	}

	report.Explanation = e.explanation(result, len(report.Metrics), report.MaxRatio, report.Limitations)

	notes := []string{report.Explanation}
	for _, metric := range report.Metrics {
		notes = append(notes, fmt.Sprintf("%s: %d/%d research articles matched (ratio %.4f, threshold %.2f).",
			metric.Label, metric.Numerator, metric.Denominator, metric.Ratio, metric.Threshold))
	}
	notes = append(notes, report.Limitations...)
	if !sufficient {
		notes = append(notes, fmt.Sprintf("Endogeny data is incomplete for a decision (%s).", model.KindInsufficientEvidence))
	}
	if len(sub.URLsFor(model.HintReviewers)) == 0 {
		notes = append(notes, "Reviewer list URL was not provided. Matching used editor and editorial board names only.")
	}

	status := model.EvidenceStructuredContent
	if len(report.Metrics) == 0 {
		status = model.EvidenceURLWithoutText
		if len(sub.URLsFor(model.HintLatestContent)) == 0 && len(sub.URLsFor(model.HintArchives)) == 0 {
			status = model.EvidenceURLNotProvided
		}
	}

	report.Verdict = model.RuleVerdict{
		RuleID:         RuleID,
		RuleHint:       model.HintEndogeny,
		Implemented:    true,
		Result:         result,
		Confidence:     confidence(result, report.MatchedArticles, report.Limitations),
		Notes:          notes,
		EvidenceURLs:   dedupe(append(unitURLs, articleURLs...)),
		EvidenceStatus: status,
	}
	return report
}

func (e *Evaluator) unitSufficient(pm model.PublicationModel, unit model.Unit, metric model.EndogenyMetric) bool {
	if pm == model.ModelContinuous {
		return metric.Denominator >= e.cfg.MinContinuousArticles
	}
	return !unit.Unidentified && metric.Denominator >= 1
}

// classify records limitations and reports whether the data suffices
func (e *Evaluator) classify(sub *model.StructuredSubmission, metrics []model.EndogenyMetric, limitations *[]string) bool {
	sufficient := true
	add := func(msg string) {
		sufficient = false
		*limitations = append(*limitations, msg)
	}

	if len(metrics) == 0 {
		add("No measurable unit was found for endogeny computation.")
	}

	switch sub.PublicationModel {
	case model.ModelIssueBased:
		identified := 0
		for _, metric := range metrics {
			for _, unit := range sub.Units {
				if unit.ID == metric.UnitID && !unit.Unidentified {
					identified++
				}
			}
		}
		if identified < 2 {
			add("Latest two issues are not fully available.")
		}
	case model.ModelContinuous:
		total := 0
		for _, metric := range metrics {
			total += metric.Denominator
		}
		if total < e.cfg.MinContinuousArticles {
			add(fmt.Sprintf("Continuous model has fewer than %d research articles in the trailing window.", e.cfg.MinContinuousArticles))
		}
	default:
		add(fmt.Sprintf("Unknown publication model %q.", sub.PublicationModel))
	}

	for _, metric := range metrics {
		if metric.Denominator == 0 {
			add(fmt.Sprintf("Unit '%s' has zero research articles.", metric.Label))
		}
	}
	return sufficient
}

func (e *Evaluator) explanation(result model.Result, units int, maxRatio float64, limitations []string) string {
	pct := fmt.Sprintf("%.2f%%", maxRatio*100)
	threshold := fmt.Sprintf("%g%%", e.cfg.Threshold*100)
	switch result {
	case model.ResultFail:
		return fmt.Sprintf("Endogeny exceeds the %s threshold. Max observed ratio is %s across %d measured unit(s).", threshold, pct, units)
	case model.ResultPass:
		return fmt.Sprintf("Endogeny is within the %s threshold. Max observed ratio is %s across %d measured unit(s).", threshold, pct, units)
	}
	reason := "Evidence is incomplete or ambiguous."
	if len(limitations) > 0 {
		reason = limitations[0]
	}
	return fmt.Sprintf("Endogeny cannot be decided with high confidence. Max observed ratio is %s across %d measured unit(s). Primary limitation: %s", pct, units, reason)
}

func confidence(result model.Result, matched []model.MatchedArticle, limitations []string) float64 {
	base := 0.66
	if result == model.ResultPass || result == model.ResultFail {
		base = 0.9
	}
	var fuzzy, initials int
	for _, m := range matched {
		switch m.Method {
		case MethodFuzzy:
			fuzzy++
		case MethodInitials:
			initials++
		}
	}
	base -= math.Min(0.2, 0.05*float64(fuzzy))
	base -= math.Min(0.1, 0.02*float64(initials))
	base -= math.Min(0.35, 0.08*float64(len(limitations)))
	base = math.Max(0.1, math.Min(0.99, base))
	return math.Round(base*100) / 100
}

func expectedWindow(pm model.PublicationModel) string {
	if pm == model.ModelContinuous {
		return model.WindowTrailingPeriod
	}
	return model.WindowIssue
}

func dedupe(values []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, v := range values {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
