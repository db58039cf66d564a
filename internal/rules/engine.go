package rules

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ppiankov/doaj-reviewer/internal/endogeny"
	"github.com/ppiankov/doaj-reviewer/internal/logging"
	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// Evaluation is the engine output for one submission
type Evaluation struct {
	RulesetID      string
	RulesetVersion string
	Checks         []model.RuleVerdict // Must rules, ruleset order
	Supplementary  []model.RuleVerdict
	Endogeny       model.EndogenyReport
}

// Engine evaluates a ruleset against structured submissions
type Engine struct {
	ruleset  *Ruleset
	registry *Registry
	workers  int
	logger   *slog.Logger
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithWorkers bounds how many evaluators run at once
func WithWorkers(n int) EngineOption {
	return func(e *Engine) { e.workers = n }
}

// WithEngineLogger sets the engine logger
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// NewEngine validates the ruleset and creates an engine
func NewEngine(rs *Ruleset, reg *Registry, opts ...EngineOption) (*Engine, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: registry is nil", model.ErrInvalidRuleset)
	}
	e := &Engine{ruleset: rs, registry: reg, workers: 4, logger: logging.Discard()}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = 1
	}
	return e, nil
}

// Ruleset returns the engine's ruleset
func (e *Engine) Ruleset() *Ruleset {
	return e.ruleset
}

// Evaluate runs every rule of the ruleset, must rules first. Rules without
// a registered evaluator resolve to need_human_review. Evaluators run
// concurrently over the read-only submission; output order follows the
// ruleset.
func (e *Engine) Evaluate(sub *model.StructuredSubmission) Evaluation {
	rules := e.ruleset.Ordered()
	verdicts := make([]model.RuleVerdict, len(rules))
	reports := make([]*model.EndogenyReport, len(rules))

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, e.workers)
	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, rule Rule) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()
			verdicts[idx], reports[idx] = e.evaluateRule(sub, rule)
		}(i, rule)
	}
	wg.Wait()

	out := Evaluation{
		RulesetID:      e.ruleset.ID,
		RulesetVersion: e.ruleset.Version,
		Checks:         []model.RuleVerdict{},
		Supplementary:  []model.RuleVerdict{},
	}
	for i, rule := range rules {
		if reports[i] != nil {
			out.Endogeny = *reports[i]
			out.Endogeny.Verdict = verdicts[i]
		}
		if rule.Must {
			out.Checks = append(out.Checks, verdicts[i])
		} else {
			out.Supplementary = append(out.Supplementary, verdicts[i])
		}
	}
	if out.Endogeny.Verdict.RuleID == "" {
		out.Endogeny = notRunReport()
	}
	return out
}

func (e *Engine) evaluateRule(sub *model.StructuredSubmission, rule Rule) (verdict model.RuleVerdict, report *model.EndogenyReport) {
	evaluator, ok := e.registry.Lookup(rule.RuleID)
	switch {
	case !ok:
		e.logger.Warn("no evaluator registered", "rule", rule.RuleID)
		verdict = model.RuleVerdict{
			RuleID:     rule.RuleID,
			Result:     model.ResultNeedHumanReview,
			Confidence: 0,
			Notes: []string{fmt.Sprintf("No evaluator is registered for rule %s (%s).",
				rule.RuleID, model.KindMissingEvaluator)},
		}
	default:
		if binder, isBinder := evaluator.(HintBinder); isBinder && rule.RuleHint != "" {
			evaluator = binder.BindHint(rule.RuleHint)
		}
		verdict, report = e.run(sub, rule.RuleID, evaluator)
	}

	verdict.RuleID = rule.RuleID
	if rule.RuleHint != "" {
		verdict.RuleHint = rule.RuleHint
	}
	verdict.Must = rule.Must
	if verdict.Result == "" {
		verdict.Result = model.ResultNeedHumanReview
	}
	if verdict.Notes == nil {
		verdict.Notes = []string{}
	}
	annotate(sub, &verdict)
	e.logger.Debug("rule evaluated", "rule", rule.RuleID, "result", verdict.Result, "confidence", verdict.Confidence)
	return verdict, report
}

// run calls one evaluator. A panic becomes need_human_review so one broken
// rule cannot take down the review.
func (e *Engine) run(sub *model.StructuredSubmission, ruleID string, evaluator Evaluator) (verdict model.RuleVerdict, report *model.EndogenyReport) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("evaluator panicked", "rule", ruleID, "panic", r)
			verdict = model.RuleVerdict{
				Result:      model.ResultNeedHumanReview,
				Implemented: true,
				Notes:       []string{fmt.Sprintf("Evaluator for rule %s failed: %v", ruleID, r)},
			}
			report = nil
		}
	}()

	if reporter, ok := evaluator.(ReportingEvaluator); ok {
		r := reporter.Report(sub)
		return r.Verdict, &r
	}
	return evaluator.Evaluate(sub), nil
}

func notRunReport() model.EndogenyReport {
	return model.EndogenyReport{
		Verdict: model.RuleVerdict{
			RuleID:     endogeny.RuleID,
			RuleHint:   model.HintEndogeny,
			Result:     model.ResultNeedHumanReview,
			Notes:      []string{"Endogeny evaluator did not run."},
			Confidence: 0,
		},
		Metrics:         []model.EndogenyMetric{},
		MatchedArticles: []model.MatchedArticle{},
		Limitations:     []string{"Endogeny evaluator did not run."},
		Explanation:     "Endogeny evaluator did not run.",
	}
}
