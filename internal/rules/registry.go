package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ppiankov/doaj-reviewer/internal/endogeny"
	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// LicenseRuleID identifies the license rule, whose accepted options come
// from configuration
const LicenseRuleID = "doaj.license_terms.v1"

// Evaluator decides one rule over a structured submission. Evaluators must
// not mutate the submission.
type Evaluator interface {
	Evaluate(sub *model.StructuredSubmission) model.RuleVerdict
}

// EvaluatorFunc adapts a function to Evaluator
type EvaluatorFunc func(sub *model.StructuredSubmission) model.RuleVerdict

// Evaluate calls f
func (f EvaluatorFunc) Evaluate(sub *model.StructuredSubmission) model.RuleVerdict {
	return f(sub)
}

// HintBinder is implemented by evaluators that read policy text by hint.
// BindHint returns a copy reading the pages of hint instead of its default.
type HintBinder interface {
	BindHint(hint string) Evaluator
}

// ReportingEvaluator is an evaluator that also produces the endogeny audit report
type ReportingEvaluator interface {
	Evaluator
	Report(sub *model.StructuredSubmission) model.EndogenyReport
}

// EndogenyRule adapts the endogeny evaluator to the registry
type EndogenyRule struct {
	evaluator *endogeny.Evaluator
}

// NewEndogenyRule wraps an endogeny evaluator
func NewEndogenyRule(e *endogeny.Evaluator) *EndogenyRule {
	return &EndogenyRule{evaluator: e}
}

// Evaluate returns the endogeny verdict
func (r *EndogenyRule) Evaluate(sub *model.StructuredSubmission) model.RuleVerdict {
	return r.evaluator.Evaluate(sub).Verdict
}

// Report returns the full endogeny report
func (r *EndogenyRule) Report(sub *model.StructuredSubmission) model.EndogenyReport {
	return r.evaluator.Evaluate(sub)
}

// Registry maps rule ids to evaluators
type Registry struct {
	mu         sync.RWMutex
	evaluators map[string]Evaluator
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{evaluators: make(map[string]Evaluator)}
}

// Register binds an evaluator to a rule id, replacing any previous binding
func (r *Registry) Register(ruleID string, e Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[ruleID] = e
}

// Lookup returns the evaluator bound to a rule id
func (r *Registry) Lookup(ruleID string) (Evaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.evaluators[ruleID]
	return e, ok
}

// RuleIDs returns the registered rule ids, sorted
func (r *Registry) RuleIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.evaluators))
	for id := range r.evaluators {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DefaultRegistry binds every built-in evaluator: the signal catalogue,
// ISSN, editorial board, reviewer composition and endogeny
func DefaultRegistry(cfg *model.Config) (*Registry, error) {
	catalog, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}

	reg := NewRegistry()
	for _, rule := range catalog.Rules {
		if rule.RuleID == LicenseRuleID {
			patterns := LicensePatterns(cfg.Rules.AcceptedLicenses)
			if len(patterns) == 0 {
				return nil, fmt.Errorf("%w: rules.accepted_licenses is empty", model.ErrInvalidRuleset)
			}
			rule = rule.WithSignals("accepted_license", patterns)
		}
		compiled, err := CompileSignalRule(rule)
		if err != nil {
			return nil, err
		}
		reg.Register(rule.RuleID, compiled)
	}

	reg.Register(ISSNRuleID, ISSNEvaluator{})
	reg.Register(BoardRuleID, BoardEvaluator{MinMembers: cfg.Rules.BoardMinMembers})
	reg.Register(ReviewerRuleID, ReviewerEvaluator{
		MinCount:            cfg.Rules.ReviewerMinCount,
		MaxInstitutionShare: cfg.Rules.ReviewerMaxInstitutionShare,
	})
	reg.Register(endogeny.RuleID, NewEndogenyRule(endogeny.NewEvaluator(cfg.Endogeny)))
	return reg, nil
}
