package rules

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/doaj-reviewer/internal/extract"
	"github.com/ppiankov/doaj-reviewer/internal/model"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Condition is a boolean expression over signal groups. Exactly one of
// Signal, All, Any or Not is set.
type Condition struct {
	Signal string      `yaml:"signal,omitempty"`
	Min    int         `yaml:"min,omitempty"` // distinct patterns that must match, default 1
	All    []Condition `yaml:"all,omitempty"`
	Any    []Condition `yaml:"any,omitempty"`
	Not    *Condition  `yaml:"not,omitempty"`
}

// Upgrade raises an outcome's confidence when its condition holds
type Upgrade struct {
	Confidence float64    `yaml:"confidence"`
	When       *Condition `yaml:"when"`
}

// Outcome is one ordered decision of a signal rule. An outcome without a
// condition always applies.
type Outcome struct {
	Result     model.Result `yaml:"result"`
	Confidence float64      `yaml:"confidence"`
	Upgrade    *Upgrade     `yaml:"upgrade,omitempty"`
	Note       string       `yaml:"note"`
	When       *Condition   `yaml:"when,omitempty"`
}

// InfoNote is appended to a verdict when its condition holds
type InfoNote struct {
	Note string     `yaml:"note"`
	When *Condition `yaml:"when"`
}

// SignalRule is a data-driven policy-text rule
type SignalRule struct {
	RuleID        string              `yaml:"rule_id"`
	RuleHint      string              `yaml:"rule_hint"`
	FallbackHints []string            `yaml:"fallback_hints,omitempty"`
	Signals       map[string][]string `yaml:"signals"`
	Outcomes      []Outcome           `yaml:"outcomes"`
	Info          []InfoNote          `yaml:"info,omitempty"`
}

// Catalog is the set of signal rules
type Catalog struct {
	Rules []SignalRule `yaml:"rules"`
}

// DefaultCatalog returns the embedded signal catalogue
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
}

// ParseCatalog decodes a signal catalogue
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: catalog: %v", model.ErrInvalidRuleset, err)
	}
	return &c, nil
}

// WithSignals returns a copy of the rule with an extra signal group
func (r SignalRule) WithSignals(name string, patterns []string) SignalRule {
	signals := make(map[string][]string, len(r.Signals)+1)
	for k, v := range r.Signals {
		signals[k] = v
	}
	signals[name] = patterns
	r.Signals = signals
	return r
}

// SignalEvaluator evaluates a compiled signal rule
type SignalEvaluator struct {
	rule   SignalRule
	groups []string
	regex  map[string][]*regexp.Regexp
}

// CompileSignalRule validates a signal rule and compiles its patterns
func CompileSignalRule(rule SignalRule) (*SignalEvaluator, error) {
	if rule.RuleID == "" || rule.RuleHint == "" {
		return nil, fmt.Errorf("%w: signal rule needs rule_id and rule_hint", model.ErrInvalidRuleset)
	}
	if len(rule.Outcomes) == 0 || rule.Outcomes[len(rule.Outcomes)-1].When != nil {
		return nil, fmt.Errorf("%w: %s: last outcome must be unconditional", model.ErrInvalidRuleset, rule.RuleID)
	}

	s := &SignalEvaluator{rule: rule, regex: make(map[string][]*regexp.Regexp, len(rule.Signals))}
	for name, patterns := range rule.Signals {
		if len(patterns) == 0 {
			return nil, fmt.Errorf("%w: %s: signal %s has no patterns", model.ErrInvalidRuleset, rule.RuleID, name)
		}
		for _, pattern := range patterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: signal %s: %v", model.ErrInvalidRuleset, rule.RuleID, name, err)
			}
			s.regex[name] = append(s.regex[name], re)
		}
		s.groups = append(s.groups, name)
	}
	sort.Strings(s.groups)

	for i, outcome := range rule.Outcomes {
		switch outcome.Result {
		case model.ResultPass, model.ResultFail, model.ResultNeedHumanReview:
		default:
			return nil, fmt.Errorf("%w: %s: outcome %d has result %q", model.ErrInvalidRuleset, rule.RuleID, i, outcome.Result)
		}
		if outcome.Confidence < 0 || outcome.Confidence > 1 {
			return nil, fmt.Errorf("%w: %s: outcome %d confidence out of range", model.ErrInvalidRuleset, rule.RuleID, i)
		}
		if err := s.checkCondition(outcome.When); err != nil {
			return nil, err
		}
		if outcome.Upgrade != nil {
			if outcome.Upgrade.When == nil {
				return nil, fmt.Errorf("%w: %s: upgrade without condition", model.ErrInvalidRuleset, rule.RuleID)
			}
			if err := s.checkCondition(outcome.Upgrade.When); err != nil {
				return nil, err
			}
		}
	}
	for _, info := range rule.Info {
		if info.When == nil {
			return nil, fmt.Errorf("%w: %s: info note without condition", model.ErrInvalidRuleset, rule.RuleID)
		}
		if err := s.checkCondition(info.When); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *SignalEvaluator) checkCondition(c *Condition) error {
	if c == nil {
		return nil
	}
	set := 0
	if c.Signal != "" {
		set++
		if _, ok := s.regex[c.Signal]; !ok {
			return fmt.Errorf("%w: %s: unknown signal %q", model.ErrInvalidRuleset, s.rule.RuleID, c.Signal)
		}
	}
	if len(c.All) > 0 {
		set++
	}
	if len(c.Any) > 0 {
		set++
	}
	if c.Not != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("%w: %s: condition must set exactly one of signal/all/any/not", model.ErrInvalidRuleset, s.rule.RuleID)
	}
	for i := range c.All {
		if err := s.checkCondition(&c.All[i]); err != nil {
			return err
		}
	}
	for i := range c.Any {
		if err := s.checkCondition(&c.Any[i]); err != nil {
			return err
		}
	}
	return s.checkCondition(c.Not)
}

// BindHint returns a copy of the evaluator reading the pages of hint.
// Fallback hints of the catalogue entry are kept.
func (s *SignalEvaluator) BindHint(hint string) Evaluator {
	if hint == "" || hint == s.rule.RuleHint {
		return s
	}
	bound := *s
	bound.rule.RuleHint = hint
	return &bound
}

// Evaluate reads the policy text bound to the rule and decides
func (s *SignalEvaluator) Evaluate(sub *model.StructuredSubmission) model.RuleVerdict {
	pages := pagesWithFallback(sub, s.rule.RuleHint, s.rule.FallbackHints)
	if len(pages) == 0 {
		return MissingPolicyVerdict(sub, s.rule.RuleID, s.rule.RuleHint, s.rule.FallbackHints)
	}

	counts, matches := s.scan(pages)
	verdict := model.RuleVerdict{
		RuleID:       s.rule.RuleID,
		RuleHint:     s.rule.RuleHint,
		Implemented:  true,
		EvidenceURLs: pageURLs(pages),
		Matches:      matches,
	}
	for _, outcome := range s.rule.Outcomes {
		if !holds(outcome.When, counts) {
			continue
		}
		verdict.Result = outcome.Result
		verdict.Confidence = outcome.Confidence
		if outcome.Upgrade != nil && holds(outcome.Upgrade.When, counts) {
			verdict.Confidence = outcome.Upgrade.Confidence
		}
		verdict.Notes = []string{outcome.Note}
		break
	}
	for _, info := range s.rule.Info {
		if holds(info.When, counts) {
			verdict.Notes = append(verdict.Notes, info.Note)
		}
	}
	return verdict
}

// scan counts the distinct patterns of each group matching any page and
// keeps the first matched snippet per group
func (s *SignalEvaluator) scan(pages []model.PolicyPage) (map[string]int, []model.SignalMatch) {
	texts := make([]string, len(pages))
	for i, page := range pages {
		texts[i] = page.Title + "\n" + page.Text
	}

	counts := make(map[string]int, len(s.groups))
	var matches []model.SignalMatch
	for _, group := range s.groups {
		captured := false
		for _, re := range s.regex[group] {
			for i, text := range texts {
				loc := re.FindStringIndex(text)
				if loc == nil {
					continue
				}
				counts[group]++
				if !captured {
					captured = true
					matches = append(matches, model.SignalMatch{
						Signal:  group,
						URL:     pages[i].URL,
						Snippet: snippet(text, loc[0], loc[1]),
					})
				}
				break
			}
		}
	}
	return counts, matches
}

func holds(c *Condition, counts map[string]int) bool {
	if c == nil {
		return true
	}
	switch {
	case c.Signal != "":
		return counts[c.Signal] >= max(1, c.Min)
	case len(c.All) > 0:
		for i := range c.All {
			if !holds(&c.All[i], counts) {
				return false
			}
		}
		return true
	case len(c.Any) > 0:
		for i := range c.Any {
			if holds(&c.Any[i], counts) {
				return true
			}
		}
		return false
	case c.Not != nil:
		return !holds(c.Not, counts)
	}
	return false
}

const snippetContext = 60

// snippet returns the match with surrounding context on one line
func snippet(text string, start, end int) string {
	from := max(0, start-snippetContext)
	to := min(len(text), end+snippetContext)
	for from > 0 && !isRuneStart(text[from]) {
		from--
	}
	for to < len(text) && !isRuneStart(text[to]) {
		to++
	}
	return extract.SafeExcerpt(strings.Join(strings.Fields(text[from:to]), " "), 2*snippetContext+40)
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// LicensePatterns turns accepted license names into signal patterns.
// Spaces and hyphens in a name match either separator.
func LicensePatterns(licenses []string) []string {
	var patterns []string
	for _, license := range licenses {
		license = strings.TrimSpace(license)
		if license == "" {
			continue
		}
		var parts []string
		for _, token := range strings.FieldsFunc(license, func(r rune) bool { return r == ' ' || r == '-' }) {
			parts = append(parts, regexp.QuoteMeta(token))
		}
		pattern := `\b` + strings.Join(parts, `[\s-]+`) + `\b`
		// a bare "CC BY" must not match inside "CC BY-NC" when only CC BY is accepted
		if len(parts) > 1 {
			pattern += `(?:[^-\w]|$)`
		}
		patterns = append(patterns, pattern)
	}
	return patterns
}
