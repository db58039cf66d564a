package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/ppiankov/doaj-reviewer/internal/model"
	"github.com/ppiankov/doaj-reviewer/internal/rules"
)

func TestLoadConfig_FileEnvAndDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "fetch:\n  js_mode: \"off\"\nreview:\n  run_timeout: 2m\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DOAJ_REVIEWER_CACHE_REDIS_ADDR", "localhost:6379")

	cfgFile = path
	t.Cleanup(func() { cfgFile = "" })
	initConfig()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Fetch.JSMode != model.JSModeOff {
		t.Errorf("expected js_mode off from file, got %q", cfg.Fetch.JSMode)
	}
	if cfg.Review.RunTimeout != 2*time.Minute {
		t.Errorf("expected run_timeout 2m from file, got %v", cfg.Review.RunTimeout)
	}
	if cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("expected redis_addr from env, got %q", cfg.Cache.RedisAddr)
	}

	defaults := model.DefaultConfig()
	if cfg.Concurrency.EvaluatorWorkers != defaults.Concurrency.EvaluatorWorkers {
		t.Errorf("expected default evaluator workers %d, got %d",
			defaults.Concurrency.EvaluatorWorkers, cfg.Concurrency.EvaluatorWorkers)
	}
	if len(cfg.Rules.AcceptedLicenses) != len(defaults.Rules.AcceptedLicenses) {
		t.Errorf("expected default accepted licenses, got %v", cfg.Rules.AcceptedLicenses)
	}
}

func TestWriteJSON_CreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "j1.summary.json")
	summary := &model.ReviewSummary{SubmissionID: "j1", OverallResult: model.ResultPass}
	if err := writeJSON(path, summary); err != nil {
		t.Fatalf("writeJSON failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got model.ReviewSummary
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.SubmissionID != "j1" || got.OverallResult != model.ResultPass {
		t.Errorf("unexpected round trip: %+v", got)
	}
	if data[len(data)-1] != '\n' {
		t.Error("expected trailing newline")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"journal-42":               "journal-42",
		"Acta Medica: 2026/1":      "Acta-Medica_-2026_1",
		` <bad>|name?* `:           "_bad__name__",
		"https://example.org/a\\b": "https___example.org_a_b",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}

	long := make([]byte, 150)
	for i := range long {
		long[i] = 'a'
	}
	if got := sanitizeFilename(string(long)); len(got) != 100 {
		t.Errorf("expected 100 characters, got %d", len(got))
	}
}

func TestRulesetCoverage(t *testing.T) {
	reg := rules.NewRegistry()
	reg.Register("a.v1", rules.EvaluatorFunc(func(*model.StructuredSubmission) model.RuleVerdict { return model.RuleVerdict{} }))
	reg.Register("spare.v1", rules.EvaluatorFunc(func(*model.StructuredSubmission) model.RuleVerdict { return model.RuleVerdict{} }))
	rs := &rules.Ruleset{ID: "x", Version: "1", Rules: []rules.Rule{
		{RuleID: "a.v1", Must: true, RuleHint: "a"},
		{RuleID: "b.v1", Must: true, RuleHint: "b"},
	}}

	missing, unused := rulesetCoverage(rs, reg)
	if !reflect.DeepEqual(missing, []string{"b.v1"}) {
		t.Errorf("missing = %v, want [b.v1]", missing)
	}
	if !reflect.DeepEqual(unused, []string{"spare.v1"}) {
		t.Errorf("unused = %v, want [spare.v1]", unused)
	}

	defaults, err := rules.DefaultRegistry(model.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	missing, unused = rulesetCoverage(rules.DefaultRuleset(), defaults)
	if len(missing) != 0 || len(unused) != 0 {
		t.Errorf("expected the default ruleset to cover the default registry, got missing %v unused %v", missing, unused)
	}
}
