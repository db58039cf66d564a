package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// writeJSON writes v as indented JSON to path, or stdout for "" and "-"
func writeJSON(path string, v any) (err error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	if path == "" || path == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func readFile(path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// printSummary writes a human-readable verdict table
func printSummary(w io.Writer, s *model.ReviewSummary) {
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  %s  %s\n", resultMark(s.OverallResult), strings.ToUpper(string(s.OverallResult)))
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Submission:  %s\n", s.SubmissionID)
	fmt.Fprintf(w, "  Homepage:    %s\n", s.HomepageURL)
	fmt.Fprintf(w, "  Ruleset:     %s %s\n", s.RulesetID, s.RulesetVersion)
	fmt.Fprintf(w, "  Decision:    %s\n", s.DecisionReason)
	fmt.Fprintf(w, "  Must rules:  %d pass, %d fail, %d need review\n",
		s.MustCounts.Pass, s.MustCounts.Fail, s.MustCounts.NeedHumanReview)
	fmt.Fprintf(w, "\n")

	for _, v := range s.Checks {
		fmt.Fprintf(w, "  %s %-40s %-18s %.2f\n", resultMark(v.Result), v.RuleID, v.Result, v.Confidence)
	}
	if len(s.SupplementaryChecks) > 0 {
		fmt.Fprintf(w, "\n  Supplementary (not aggregated):\n")
		for _, v := range s.SupplementaryChecks {
			fmt.Fprintf(w, "  %s %-40s %-18s %.2f\n", resultMark(v.Result), v.RuleID, v.Result, v.Confidence)
		}
	}
	fmt.Fprintf(w, "\n")
}

func resultMark(r model.Result) string {
	switch r {
	case model.ResultPass:
		return "✓"
	case model.ResultFail:
		return "✗"
	}
	return "?"
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
