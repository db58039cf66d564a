package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/doaj-reviewer/internal/validate"
)

// evaluateCmd represents the evaluate command
var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a structured submission without fetching",
	Long: `Evaluate runs the rule engine and the decision aggregator over a structured
submission produced by intake (or edited by hand). Nothing is fetched.

Example:
  doaj-reviewer evaluate --input structured.json --out summary.json`,
	RunE: runEvaluate,
}

func init() {
	rootCmd.AddCommand(evaluateCmd)
	evaluateCmd.Flags().StringVarP(&inputPath, "input", "i", "", "structured submission JSON (- for stdin)")
	evaluateCmd.Flags().StringVarP(&outPath, "out", "o", "-", "summary output path (- for stdout)")
	evaluateCmd.Flags().StringVar(&endogenyOut, "endogeny-out", "", "also write the endogeny report")
	evaluateCmd.Flags().StringVar(&rulesetPath, "ruleset", "", "ruleset YAML/JSON file (default: built-in doaj.must.v1)")
	_ = evaluateCmd.MarkFlagRequired("input")
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	data, err := readFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	sub, err := validate.DecodeStructured(data)
	if err != nil {
		return err
	}

	p, _, err := buildPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	outcome, err := p.EvaluateStructured(sub)
	if err != nil {
		return err
	}
	structuredOut = ""
	if err := writeOutcome(outcome); err != nil {
		return err
	}
	printSummary(os.Stderr, outcome.Summary)
	return nil
}
