package rules

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

//go:embed ruleset.must.v1.yaml
var defaultRulesetYAML []byte

// Rule is one entry of a ruleset
type Rule struct {
	RuleID   string `json:"rule_id" yaml:"rule_id"`
	Must     bool   `json:"must" yaml:"must"`
	RuleHint string `json:"rule_hint" yaml:"rule_hint"`
}

// Ruleset is an ordered list of rules evaluated by the engine
type Ruleset struct {
	ID      string `json:"ruleset_id" yaml:"ruleset_id"`
	Version string `json:"version" yaml:"version"`
	Rules   []Rule `json:"rules" yaml:"rules"`
}

// DefaultRuleset returns the embedded doaj.must.v1 ruleset
func DefaultRuleset() *Ruleset {
	rs, err := ParseRuleset(defaultRulesetYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded ruleset: %v", err))
	}
	return rs
}

// LoadRuleset reads a YAML or JSON ruleset file
func LoadRuleset(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset: %w", err)
	}
	return ParseRuleset(data)
}

// ParseRuleset decodes and validates a ruleset. JSON input is accepted
// since it is valid YAML.
func ParseRuleset(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRuleset, err)
	}
	if err := rs.Validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

// Validate checks the ruleset contract. Violations wrap model.ErrInvalidRuleset.
func (r *Ruleset) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: ruleset is nil", model.ErrInvalidRuleset)
	}
	if r.ID == "" {
		return fmt.Errorf("%w: ruleset_id is required", model.ErrInvalidRuleset)
	}
	if len(r.Rules) == 0 {
		return fmt.Errorf("%w: ruleset %s has no rules", model.ErrInvalidRuleset, r.ID)
	}

	seen := make(map[string]bool, len(r.Rules))
	must := 0
	for i, rule := range r.Rules {
		if rule.RuleID == "" {
			return fmt.Errorf("%w: rule %d has no rule_id", model.ErrInvalidRuleset, i)
		}
		if rule.RuleHint == "" {
			return fmt.Errorf("%w: rule %s has no rule_hint", model.ErrInvalidRuleset, rule.RuleID)
		}
		if seen[rule.RuleID] {
			return fmt.Errorf("%w: duplicate rule %s", model.ErrInvalidRuleset, rule.RuleID)
		}
		seen[rule.RuleID] = true
		if rule.Must {
			must++
		}
	}
	if must == 0 {
		return fmt.Errorf("%w: ruleset %s has no must rules", model.ErrInvalidRuleset, r.ID)
	}
	return nil
}

// Hints returns the rule hints of the ruleset in declaration order
func (r *Ruleset) Hints() []string {
	out := make([]string, 0, len(r.Rules))
	for _, rule := range r.Rules {
		out = append(out, rule.RuleHint)
	}
	return out
}

// Ordered returns must rules first, then supplementary rules, each in
// declaration order
func (r *Ruleset) Ordered() []Rule {
	out := make([]Rule, 0, len(r.Rules))
	for _, rule := range r.Rules {
		if rule.Must {
			out = append(out, rule)
		}
	}
	for _, rule := range r.Rules {
		if !rule.Must {
			out = append(out, rule)
		}
	}
	return out
}
