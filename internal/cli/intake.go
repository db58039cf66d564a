package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/doaj-reviewer/internal/validate"
)

// intakeCmd represents the intake command
var intakeCmd = &cobra.Command{
	Use:   "intake",
	Short: "Fetch and normalise a raw submission without evaluating it",
	Long: `Intake runs only the fetch and normalisation stage and writes the structured
submission, so it can be inspected, corrected and evaluated later.

Example:
  doaj-reviewer intake --input raw.json --out structured.json`,
	RunE: runIntake,
}

func init() {
	rootCmd.AddCommand(intakeCmd)
	addRunFlags(intakeCmd)
	intakeCmd.Flags().StringVarP(&inputPath, "input", "i", "", "raw submission JSON (- for stdin)")
	intakeCmd.Flags().StringVarP(&outPath, "out", "o", "-", "structured submission output path (- for stdout)")
	_ = intakeCmd.MarkFlagRequired("input")
}

func runIntake(cmd *cobra.Command, args []string) error {
	data, err := readFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	raw, err := validate.DecodeRaw(data)
	if err != nil {
		return err
	}

	p, _, err := buildPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	sub, err := p.Intake(context.Background(), raw)
	if err != nil {
		return fmt.Errorf("intake failed: %w", err)
	}
	if err := writeJSON(outPath, sub); err != nil {
		return fmt.Errorf("write structured submission: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ %d policy page(s), %d people, %d unit(s), %d article(s), %d evidence item(s)\n",
		len(sub.PolicyPages), len(sub.RolePeople), len(sub.Units), len(sub.Articles), len(sub.Evidence))
	return nil
}
