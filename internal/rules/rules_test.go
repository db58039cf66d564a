package rules

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"testing"

	"github.com/ppiankov/doaj-reviewer/internal/endogeny"
	"github.com/ppiankov/doaj-reviewer/internal/model"
)

const site = "https://journal.example.org/"

func page(hint, text string) model.PolicyPage {
	return model.PolicyPage{RuleHint: hint, URL: site + hint, Text: text, Source: model.SourceFetch}
}

func submission(pages ...model.PolicyPage) *model.StructuredSubmission {
	sub := &model.StructuredSubmission{
		SubmissionID:       "rules-1",
		JournalHomepageURL: site,
		PublicationModel:   model.ModelIssueBased,
		SourceURLs:         map[string][]string{},
		PolicyPages:        pages,
	}
	for _, p := range pages {
		sub.SourceURLs[p.RuleHint] = append(sub.SourceURLs[p.RuleHint], p.URL)
	}
	return sub
}

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := DefaultRegistry(model.DefaultConfig())
	if err != nil {
		t.Fatalf("DefaultRegistry failed: %v", err)
	}
	return reg
}

func evaluate(t *testing.T, ruleID string, sub *model.StructuredSubmission) model.RuleVerdict {
	t.Helper()
	e, ok := defaultRegistry(t).Lookup(ruleID)
	if !ok {
		t.Fatalf("no evaluator for %s", ruleID)
	}
	return e.Evaluate(sub)
}

// expect checks the result and, when confidence is non-zero, the confidence
func expect(t *testing.T, v model.RuleVerdict, result model.Result, confidence float64) {
	t.Helper()
	if v.Result != result {
		t.Errorf("expected %s, got %s (notes: %v)", result, v.Result, v.Notes)
	}
	if confidence != 0 && v.Confidence != confidence {
		t.Errorf("expected confidence %.2f, got %.2f", confidence, v.Confidence)
	}
}

func TestDefaultRuleset(t *testing.T) {
	rs := DefaultRuleset()
	if rs.ID != "doaj.must.v1" {
		t.Errorf("expected ruleset doaj.must.v1, got %q", rs.ID)
	}
	if err := rs.Validate(); err != nil {
		t.Fatalf("default ruleset invalid: %v", err)
	}

	ordered := rs.Ordered()
	if len(ordered) != 15 {
		t.Fatalf("expected 15 rules, got %d", len(ordered))
	}
	seenSupplementary := false
	for _, rule := range ordered {
		if !rule.Must {
			seenSupplementary = true
		} else if seenSupplementary {
			t.Errorf("must rule %s ordered after a supplementary rule", rule.RuleID)
		}
	}

	reg := defaultRegistry(t)
	for _, rule := range rs.Rules {
		if _, ok := reg.Lookup(rule.RuleID); !ok {
			t.Errorf("no evaluator for %s", rule.RuleID)
		}
	}
	if got := len(rs.Hints()); got != len(rs.Rules) {
		t.Errorf("expected one hint per rule, got %d", got)
	}
}

func TestParseRuleset_JSON(t *testing.T) {
	rs, err := ParseRuleset([]byte(`{"ruleset_id":"custom","version":"2","rules":[
		{"rule_id":"doaj.aims_scope.v1","must":true,"rule_hint":"aims_scope"}]}`))
	if err != nil {
		t.Fatalf("ParseRuleset failed: %v", err)
	}
	if rs.ID != "custom" || rs.Rules[0].RuleHint != "aims_scope" {
		t.Errorf("unexpected ruleset: %+v", rs)
	}
}

func TestRulesetValidate_Invalid(t *testing.T) {
	tests := map[string]string{
		"no id":       `{"rules":[{"rule_id":"a","must":true,"rule_hint":"a"}]}`,
		"no rules":    `{"ruleset_id":"x","rules":[]}`,
		"no rule id":  `{"ruleset_id":"x","rules":[{"must":true,"rule_hint":"a"}]}`,
		"no hint":     `{"ruleset_id":"x","rules":[{"rule_id":"a","must":true}]}`,
		"duplicate":   `{"ruleset_id":"x","rules":[{"rule_id":"a","must":true,"rule_hint":"a"},{"rule_id":"a","rule_hint":"a"}]}`,
		"no must":     `{"ruleset_id":"x","rules":[{"rule_id":"a","rule_hint":"a"}]}`,
		"not decoded": `{"ruleset_id": [}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRuleset([]byte(input))
			if !errors.Is(err, model.ErrInvalidRuleset) {
				t.Errorf("expected ErrInvalidRuleset, got %v", err)
			}
		})
	}
}

func TestCompileSignalRule_Invalid(t *testing.T) {
	base := SignalRule{
		RuleID:   "x.v1",
		RuleHint: "x",
		Signals:  map[string][]string{"a": {`\ba\b`}},
		Outcomes: []Outcome{
			{Result: model.ResultPass, Confidence: 0.8, When: &Condition{Signal: "a"}},
			{Result: model.ResultNeedHumanReview, Confidence: 0.5},
		},
	}
	if _, err := CompileSignalRule(base); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	unknown := base
	unknown.Outcomes = []Outcome{
		{Result: model.ResultPass, Confidence: 0.8, When: &Condition{Signal: "missing"}},
		{Result: model.ResultNeedHumanReview, Confidence: 0.5},
	}
	noDefault := base
	noDefault.Outcomes = base.Outcomes[:1]
	badResult := base
	badResult.Outcomes = []Outcome{{Result: "maybe", Confidence: 0.5}}

	tests := map[string]SignalRule{
		"unknown signal": unknown,
		"no default":     noDefault,
		"bad pattern":    base.WithSignals("b", []string{`(`}),
		"bad result":     badResult,
	}
	for name, rule := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := CompileSignalRule(rule); !errors.Is(err, model.ErrInvalidRuleset) {
				t.Errorf("expected ErrInvalidRuleset, got %v", err)
			}
		})
	}
}

func TestOpenAccessStatement(t *testing.T) {
	pass := evaluate(t, "doaj.open_access_statement.v1", submission(page(model.HintOpenAccess,
		"This is an open access journal. Users may read, download, copy, distribute and reuse articles under Creative Commons CC BY.")))
	expect(t, pass, model.ResultPass, 0.82)
	if !reflect.DeepEqual(pass.EvidenceURLs, []string{site + model.HintOpenAccess}) {
		t.Errorf("unexpected evidence urls: %v", pass.EvidenceURLs)
	}
	if len(pass.Matches) == 0 {
		t.Error("expected matched excerpts")
	}

	fail := evaluate(t, "doaj.open_access_statement.v1", submission(page(model.HintOpenAccess,
		"Access limited to subscribers and members only. Subscription required for full-text access.")))
	expect(t, fail, model.ResultFail, 0.88)
}

func TestPeerReviewPolicy(t *testing.T) {
	pass := evaluate(t, "doaj.peer_review_policy.v1", submission(page(model.HintPeerReview,
		"All manuscripts undergo double blind peer review. Each manuscript is reviewed by at least two independent reviewers. "+
			"The review process ends with an editorial decision.")))
	expect(t, pass, model.ResultPass, 0.8)
	if !slices.Contains(pass.Notes, "Peer review type: double blind.") {
		t.Errorf("expected peer review type note, got %v", pass.Notes)
	}

	vague := evaluate(t, "doaj.peer_review_policy.v1", submission(page(model.HintPeerReview,
		"We use peer review. The review process is fast.")))
	expect(t, vague, model.ResultNeedHumanReview, 0.6)

	none := evaluate(t, "doaj.peer_review_policy.v1", submission(page(model.HintPeerReview,
		"Articles are not peer reviewed.")))
	expect(t, none, model.ResultFail, 0)
}

func TestLicenseTerms(t *testing.T) {
	pass := evaluate(t, LicenseRuleID, submission(page(model.HintLicense,
		"Articles are published under the Creative Commons Attribution 4.0 License (CC BY 4.0).")))
	expect(t, pass, model.ResultPass, 0)

	fail := evaluate(t, LicenseRuleID, submission(page(model.HintLicense,
		"Copyright 2024 Example Press. All rights reserved.")))
	expect(t, fail, model.ResultFail, 0.86)

	cfg := model.DefaultConfig()
	cfg.Rules.AcceptedLicenses = []string{"CC BY"}
	reg, err := DefaultRegistry(cfg)
	if err != nil {
		t.Fatal(err)
	}
	e, _ := reg.Lookup(LicenseRuleID)
	restricted := e.Evaluate(submission(page(model.HintLicense,
		"Content is licensed under a Creative Commons CC BY-NC 4.0 license.")))
	expect(t, restricted, model.ResultNeedHumanReview, 0)
}

func TestLicensePatterns(t *testing.T) {
	patterns := LicensePatterns([]string{"CC BY", " ", "CC0"})
	if len(patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %v", patterns)
	}
	ccBy := regexp.MustCompile("(?i)" + patterns[0])
	for text, want := range map[string]bool{
		"licensed under CC BY 4.0":    true,
		"licensed under cc-by.":       true,
		"licensed under CC BY-NC 4.0": false,
	} {
		if got := ccBy.MatchString(text); got != want {
			t.Errorf("CC BY pattern on %q = %v, want %v", text, got, want)
		}
	}
	if !regexp.MustCompile("(?i)" + patterns[1]).MatchString("waived under CC0") {
		t.Error("expected CC0 pattern to match")
	}

	cfg := model.DefaultConfig()
	cfg.Rules.AcceptedLicenses = nil
	if _, err := DefaultRegistry(cfg); !errors.Is(err, model.ErrInvalidRuleset) {
		t.Errorf("expected ErrInvalidRuleset without licenses, got %v", err)
	}
}

func TestCopyrightFallsBackToLicensePages(t *testing.T) {
	v := evaluate(t, "doaj.copyright_author_rights.v1", submission(page(model.HintLicense,
		"Authors retain copyright and grant the journal the right of first publication under CC BY.")))
	expect(t, v, model.ResultPass, 0)
	if !reflect.DeepEqual(v.EvidenceURLs, []string{site + model.HintLicense}) {
		t.Errorf("expected license page as evidence, got %v", v.EvidenceURLs)
	}
}

func TestPublicationFees(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		result     model.Result
		confidence float64
	}{
		{"free", "There are no article processing charges or submission fees.", model.ResultPass, 0.82},
		{"paid", "Authors must pay an article processing charge of USD 150 after acceptance.", model.ResultPass, 0.83},
		{"conflicting", "Submission is free of charge. Authors must pay an article processing charge after acceptance.",
			model.ResultNeedHumanReview, 0.44},
		{"vague", "Fees may apply. Contact the editor for fee details.", model.ResultFail, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := evaluate(t, "doaj.publication_fees_disclosure.v1", submission(page(model.HintFees, tt.text)))
			expect(t, v, tt.result, tt.confidence)
		})
	}
}

func TestAimsScopeInformationalScopeOnly(t *testing.T) {
	v := evaluate(t, "doaj.aims_scope.v1", submission(page(model.HintAimsScope,
		"Focus and Scope. The journal covers agriculture.")))
	expect(t, v, model.ResultPass, 0)
	if !slices.Contains(v.Notes, "Scope is described but no separate statement of aims was found (informational).") {
		t.Errorf("expected informational scope note, got %v", v.Notes)
	}

	full := evaluate(t, "doaj.aims_scope.v1", submission(page(model.HintAimsScope,
		"Aims and Scope. The journal publishes research in the fields of ecology. Topics include soil science.")))
	expect(t, full, model.ResultPass, 0.82)
	if len(full.Notes) != 1 {
		t.Errorf("expected 1 note, got %v", full.Notes)
	}
}

func TestMissingPolicyCarriesWAFNote(t *testing.T) {
	sub := submission()
	sub.SourceURLs[model.HintPeerReview] = []string{site + "peer-review"}
	sub.Evidence = []model.EvidenceItem{{
		Kind:        model.EvidenceWAFNote,
		URL:         site + "peer-review",
		Excerpt:     "Blocked by anti-bot protection (cloudflare); page text was discarded.",
		LocatorHint: model.WAFLocator(model.HintPeerReview),
	}}

	v := evaluate(t, "doaj.peer_review_policy.v1", sub)
	expect(t, v, model.ResultNeedHumanReview, 0.25)
	if len(v.Notes) != 2 {
		t.Fatalf("expected 2 notes, got %v", v.Notes)
	}
	if v.Notes[0] != "No policy text was extracted for `peer_review_policy` URLs." {
		t.Errorf("unexpected first note: %q", v.Notes[0])
	}
	if !strings.Contains(v.Notes[1], "anti-bot") {
		t.Errorf("expected anti-bot note, got %q", v.Notes[1])
	}
	if v.EvidenceStatus != model.EvidenceBlocked {
		t.Errorf("expected %s, got %s", model.EvidenceBlocked, v.EvidenceStatus)
	}
	if !reflect.DeepEqual(v.EvidenceURLs, []string{site + "peer-review"}) {
		t.Errorf("unexpected evidence urls: %v", v.EvidenceURLs)
	}
}

func TestValidISSN(t *testing.T) {
	tests := map[string]bool{
		"0378-5955": true,
		"2049-3630": true,
		"1234-5679": true,
		"1234-5678": false,
		"0000-006X": true,
		"0000-0060": false,
		"1234":      false,
		"":          false,
	}
	for issn, want := range tests {
		if got := ValidISSN(issn); got != want {
			t.Errorf("ValidISSN(%q) = %v, want %v", issn, got, want)
		}
	}
	got := FindISSNs("e-ISSN 2049-3630, p-ISSN 0378-5955 and again 2049-3630")
	if !reflect.DeepEqual(got, []string{"0378-5955", "2049-3630"}) {
		t.Errorf("unexpected ISSNs: %v", got)
	}
}

func TestISSNConsistency(t *testing.T) {
	about := page(model.HintISSN, "p-ISSN: 0378-5955 | e-ISSN: 2049-3630")

	sub := submission(about)
	sub.DeclaredISSN = model.DeclaredISSN{Print: "0378-5955", Electronic: "20493630"}
	v := ISSNEvaluator{}.Evaluate(sub)
	expect(t, v, model.ResultPass, 0)
	if !strings.Contains(v.Notes[0], "electronic ISSN 2049-3630") {
		t.Errorf("unexpected note: %q", v.Notes[0])
	}

	sub.DeclaredISSN = model.DeclaredISSN{Electronic: "1234-5678"}
	expect(t, ISSNEvaluator{}.Evaluate(sub), model.ResultFail, 0)

	sub.DeclaredISSN = model.DeclaredISSN{Electronic: "1234-5679"}
	v = ISSNEvaluator{}.Evaluate(sub)
	expect(t, v, model.ResultNeedHumanReview, 0)
	if !strings.Contains(v.Notes[0], "not found on-site") {
		t.Errorf("unexpected note: %q", v.Notes[0])
	}

	sub.DeclaredISSN = model.DeclaredISSN{}
	expect(t, ISSNEvaluator{}.Evaluate(sub), model.ResultPass, 0.8)

	mixed := submission(page(model.HintISSN, "ISSN 0378-5955 and ISSN 1234-5678"))
	expect(t, ISSNEvaluator{}.Evaluate(mixed), model.ResultNeedHumanReview, 0)

	fallback := submission(page(model.HintPublisher, "Published by Example Press. ISSN 1234-5678"))
	v = ISSNEvaluator{}.Evaluate(fallback)
	expect(t, v, model.ResultFail, 0)
	if !reflect.DeepEqual(v.EvidenceURLs, []string{site + model.HintPublisher}) {
		t.Errorf("expected publisher page as evidence, got %v", v.EvidenceURLs)
	}

	if got := (ISSNEvaluator{}).Evaluate(submission()).Confidence; got != 0.25 {
		t.Errorf("expected missing-policy confidence 0.25, got %.2f", got)
	}
}

func boardSubmission(people ...model.RolePerson) *model.StructuredSubmission {
	sub := submission(page(model.HintEditorialBoard,
		"Editorial Team. Editor in Chief Lina Putri, Universitas Negeri Malang. Department of Biology."))
	sub.RolePeople = people
	return sub
}

func TestEditorialBoard(t *testing.T) {
	eval := BoardEvaluator{MinMembers: 3}

	v := eval.Evaluate(boardSubmission(
		model.RolePerson{Name: "Lina Putri", Role: model.RoleEditor, Institution: "Universitas Negeri Malang"},
		model.RolePerson{Name: "Ahmad Fauzi", Role: model.RoleBoardMember, Institution: "Institut Teknologi Bandung"},
		model.RolePerson{Name: "Budi Santoso", Role: model.RoleBoardMember},
		model.RolePerson{Name: "LINA PUTRI", Role: model.RoleBoardMember},
	))
	expect(t, v, model.ResultPass, 0.84)
	if !slices.Contains(v.Notes, "Identified 3 editor/board member(s); minimum expected is 3.") {
		t.Errorf("expected member count note, got %v", v.Notes)
	}
	if !strings.Contains(v.Notes[2], "2 distinct institution(s)") {
		t.Errorf("expected institution note, got %q", v.Notes[2])
	}

	weak := eval.Evaluate(boardSubmission(
		model.RolePerson{Name: "Lina Putri", Role: model.RoleEditor},
		model.RolePerson{Name: "Ahmad Fauzi", Role: model.RoleBoardMember},
	))
	expect(t, weak, model.ResultNeedHumanReview, 0)

	empty := submission(page(model.HintEditorialBoard, "There is no editorial board at the moment."))
	expect(t, eval.Evaluate(empty), model.ResultFail, 0.87)

	expect(t, eval.Evaluate(submission()), model.ResultNeedHumanReview, 0.25)
}

var reviewerNames = []string{"Siti Aminah", "Rudi Hartono", "Dewi Lestari", "Agus Salim"}

func reviewers(institutions ...string) []model.RolePerson {
	var people []model.RolePerson
	for i, inst := range institutions {
		people = append(people, model.RolePerson{
			Name:        reviewerNames[i],
			Role:        model.RoleReviewer,
			Institution: inst,
		})
	}
	return people
}

func TestReviewerComposition(t *testing.T) {
	eval := ReviewerEvaluator{MinCount: 2, MaxInstitutionShare: 0.5}
	withReviewers := func(people []model.RolePerson) *model.StructuredSubmission {
		sub := submission(page(model.HintReviewers, "Reviewers"))
		sub.RolePeople = people
		return sub
	}

	concentrated := eval.Evaluate(withReviewers(reviewers("Universitas A", "universitas  a", "Universitas A", "Universitas B")))
	expect(t, concentrated, model.ResultFail, 0)
	if !strings.Contains(concentrated.Notes[1], "0.75") {
		t.Errorf("expected share 0.75 in note, got %q", concentrated.Notes[1])
	}

	balanced := eval.Evaluate(withReviewers(reviewers("Universitas A", "Universitas A", "Universitas B", "Universitas C")))
	expect(t, balanced, model.ResultPass, 0.78)

	expect(t, eval.Evaluate(withReviewers(reviewers("Universitas A"))), model.ResultFail, 0)
	expect(t, eval.Evaluate(withReviewers(reviewers("", ""))), model.ResultNeedHumanReview, 0)
	expect(t, eval.Evaluate(withReviewers(nil)), model.ResultNeedHumanReview, 0)
}

func fixed(result model.Result) Evaluator {
	return EvaluatorFunc(func(*model.StructuredSubmission) model.RuleVerdict {
		return model.RuleVerdict{Result: result, Confidence: 0.9, Notes: []string{string(result)}}
	})
}

func TestEngine_OrderAndMissingEvaluator(t *testing.T) {
	rs := &Ruleset{ID: "test", Version: "1", Rules: []Rule{
		{RuleID: "supp.v1", RuleHint: "supp"},
		{RuleID: "a.v1", Must: true, RuleHint: "a"},
		{RuleID: "missing.v1", Must: true, RuleHint: "missing"},
		{RuleID: "b.v1", Must: true, RuleHint: "b"},
	}}
	reg := NewRegistry()
	reg.Register("supp.v1", fixed(model.ResultFail))
	reg.Register("a.v1", fixed(model.ResultPass))
	reg.Register("b.v1", fixed(model.ResultPass))

	engine, err := NewEngine(rs, reg, WithWorkers(2))
	if err != nil {
		t.Fatal(err)
	}
	out := engine.Evaluate(submission())

	if len(out.Checks) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(out.Checks))
	}
	var ids []string
	for _, v := range out.Checks {
		ids = append(ids, v.RuleID)
		if !v.Must {
			t.Errorf("%s: expected must", v.RuleID)
		}
		if v.EvidenceStatus == "" {
			t.Errorf("%s: expected evidence status", v.RuleID)
		}
	}
	if !reflect.DeepEqual(ids, []string{"a.v1", "missing.v1", "b.v1"}) {
		t.Errorf("unexpected order: %v", ids)
	}

	missing := out.Checks[1]
	expect(t, missing, model.ResultNeedHumanReview, 0)
	if missing.Implemented {
		t.Error("expected missing evaluator to be unimplemented")
	}
	if !strings.Contains(missing.Notes[0], "missing.v1") {
		t.Errorf("unexpected note: %q", missing.Notes[0])
	}
	if missing.EvidenceStatus != model.EvidenceURLNotProvided {
		t.Errorf("expected %s, got %s", model.EvidenceURLNotProvided, missing.EvidenceStatus)
	}

	if len(out.Supplementary) != 1 || out.Supplementary[0].Must {
		t.Errorf("expected one supplementary non-must verdict, got %+v", out.Supplementary)
	}
	if out.Endogeny.Explanation != "Endogeny evaluator did not run." {
		t.Errorf("unexpected endogeny explanation: %q", out.Endogeny.Explanation)
	}
}

func TestEngine_PanickingEvaluatorNeedsReview(t *testing.T) {
	rs := &Ruleset{ID: "test", Version: "1", Rules: []Rule{
		{RuleID: "broken.v1", Must: true, RuleHint: "broken"},
		{RuleID: "ok.v1", Must: true, RuleHint: "ok"},
	}}
	reg := NewRegistry()
	reg.Register("broken.v1", EvaluatorFunc(func(*model.StructuredSubmission) model.RuleVerdict {
		panic("index out of range")
	}))
	reg.Register("ok.v1", fixed(model.ResultPass))

	engine, err := NewEngine(rs, reg)
	if err != nil {
		t.Fatal(err)
	}
	out := engine.Evaluate(submission())

	if len(out.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(out.Checks))
	}
	expect(t, out.Checks[0], model.ResultNeedHumanReview, 0)
	if !strings.Contains(out.Checks[0].Notes[0], "index out of range") {
		t.Errorf("expected panic text in note, got %v", out.Checks[0].Notes)
	}
	expect(t, out.Checks[1], model.ResultPass, 0)
}

func TestEngine_RuleBoundToCustomHint(t *testing.T) {
	rs := &Ruleset{ID: "custom", Version: "1", Rules: []Rule{
		{RuleID: "doaj.open_access_statement.v1", Must: true, RuleHint: "oa_custom"},
		{RuleID: "doaj.issn_consistency.v1", Must: true, RuleHint: "masthead"},
		{RuleID: "doaj.editorial_board.v1", Must: true, RuleHint: "team_page"},
	}}
	engine, err := NewEngine(rs, defaultRegistry(t))
	if err != nil {
		t.Fatal(err)
	}

	sub := submission(
		page("oa_custom", "This is an open access journal. Users may read, download, copy, distribute and reuse articles under Creative Commons CC BY."),
		page("masthead", "e-ISSN 2049-3630"),
		page(model.HintOpenAccess, "Access limited to subscribers and members only. Subscription required for full-text access."),
	)
	out := engine.Evaluate(sub)
	if len(out.Checks) != 3 {
		t.Fatalf("expected 3 checks, got %d", len(out.Checks))
	}

	oa := out.Checks[0]
	expect(t, oa, model.ResultPass, 0.82)
	if oa.RuleHint != "oa_custom" {
		t.Errorf("expected rule hint oa_custom, got %q", oa.RuleHint)
	}
	if oa.EvidenceStatus != model.EvidencePolicyExtracted {
		t.Errorf("expected %s, got %s", model.EvidencePolicyExtracted, oa.EvidenceStatus)
	}
	if !reflect.DeepEqual(oa.EvidenceURLs, []string{site + "oa_custom"}) {
		t.Errorf("expected only the bound page as evidence, got %v", oa.EvidenceURLs)
	}

	issn := out.Checks[1]
	expect(t, issn, model.ResultPass, 0)
	if issn.RuleHint != "masthead" {
		t.Errorf("expected rule hint masthead, got %q", issn.RuleHint)
	}

	board := out.Checks[2]
	expect(t, board, model.ResultNeedHumanReview, 0.25)
	if !strings.Contains(board.Notes[0], "`team_page`") {
		t.Errorf("expected missing-policy note naming team_page, got %v", board.Notes)
	}
}

func TestEngine_RejectsInvalidRuleset(t *testing.T) {
	if _, err := NewEngine(&Ruleset{ID: "empty"}, NewRegistry()); !errors.Is(err, model.ErrInvalidRuleset) {
		t.Errorf("expected ErrInvalidRuleset, got %v", err)
	}
}

func TestEngine_DefaultRulesetDeterministic(t *testing.T) {
	engine, err := NewEngine(DefaultRuleset(), defaultRegistry(t))
	if err != nil {
		t.Fatal(err)
	}

	sub := submission(
		page(model.HintOpenAccess, "This is an open access journal under CC BY. Read, download and reuse freely."),
		page(model.HintLicense, "Licensed under CC BY 4.0."),
	)
	first := engine.Evaluate(sub)
	second := engine.Evaluate(sub)
	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical evaluations of the same submission")
	}

	if len(first.Checks) != 11 || len(first.Supplementary) != 4 {
		t.Fatalf("expected 11 checks and 4 supplementary, got %d and %d", len(first.Checks), len(first.Supplementary))
	}
	ev := first.Endogeny.Verdict
	if ev.RuleID != endogeny.RuleID || !ev.Must {
		t.Errorf("unexpected endogeny verdict: %+v", ev)
	}
	expect(t, ev, model.ResultNeedHumanReview, 0)

	for _, v := range first.Checks {
		if v.RuleID == "doaj.open_access_statement.v1" && v.EvidenceStatus != model.EvidencePolicyExtracted {
			t.Errorf("open access: expected %s, got %s", model.EvidencePolicyExtracted, v.EvidenceStatus)
		}
		if v.RuleID == "doaj.aims_scope.v1" && v.EvidenceStatus != model.EvidenceURLNotProvided {
			t.Errorf("aims scope: expected %s, got %s", model.EvidenceURLNotProvided, v.EvidenceStatus)
		}
	}
}

func TestEngine_CrawlNotesCapped(t *testing.T) {
	sub := submission()
	sub.SourceURLs[model.HintAimsScope] = []string{site + "aims"}
	for i := 0; i < 10; i++ {
		sub.Evidence = append(sub.Evidence, model.EvidenceItem{
			Kind:        model.EvidenceCrawlNote,
			URL:         site + "aims",
			Excerpt:     fmt.Sprintf("Attempt %d failed.", i),
			LocatorHint: "fetch-" + model.HintAimsScope,
		})
	}

	engine, err := NewEngine(DefaultRuleset(), defaultRegistry(t))
	if err != nil {
		t.Fatal(err)
	}
	out := engine.Evaluate(sub)

	for _, v := range out.Checks {
		if v.RuleID != "doaj.aims_scope.v1" {
			continue
		}
		if len(v.CrawlNotes) != 6 {
			t.Errorf("expected 6 crawl notes, got %d", len(v.CrawlNotes))
		}
		if v.EvidenceStatus != model.EvidenceNotesOnly {
			t.Errorf("expected %s, got %s", model.EvidenceNotesOnly, v.EvidenceStatus)
		}
		return
	}
	t.Fatal("aims_scope verdict missing")
}
