package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/doaj-reviewer/internal/model"
	"github.com/ppiankov/doaj-reviewer/internal/pipeline"
	"github.com/ppiankov/doaj-reviewer/internal/validate"
)

var (
	inputPath     string
	outPath       string
	structuredOut string
	endogenyOut   string
	jsMode        string
	runTimeout    time.Duration
	noCache       bool
	rulesetPath   string
)

// reviewCmd represents the review command
var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a raw journal submission end to end",
	Long: `Review fetches every URL of a raw submission, normalises the pages into a
structured submission, evaluates the DOAJ ruleset and writes the review
summary.

Example:
  doaj-reviewer review --input raw.json --out summary.json
  doaj-reviewer review --input raw.json --structured-out structured.json --endogeny-out endogeny.json
  doaj-reviewer review --input raw.json --js-mode off --no-cache`,
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	addRunFlags(reviewCmd)
	reviewCmd.Flags().StringVarP(&inputPath, "input", "i", "", "raw submission JSON (- for stdin)")
	reviewCmd.Flags().StringVarP(&outPath, "out", "o", "-", "summary output path (- for stdout)")
	reviewCmd.Flags().StringVar(&structuredOut, "structured-out", "", "also write the structured submission")
	reviewCmd.Flags().StringVar(&endogenyOut, "endogeny-out", "", "also write the endogeny report")
	_ = reviewCmd.MarkFlagRequired("input")
}

// addRunFlags adds the flags shared by commands that build a pipeline
func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&jsMode, "js-mode", "", "rendering mode override: auto, on, off")
	cmd.Flags().DurationVar(&runTimeout, "timeout", 0, "run timeout override (e.g. 5m)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the fetch cache")
	cmd.Flags().StringVar(&rulesetPath, "ruleset", "", "ruleset YAML/JSON file (default: built-in doaj.must.v1)")
}

// buildPipeline resolves configuration, applies flag overrides and builds a pipeline
func buildPipeline() (*pipeline.Pipeline, *model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if jsMode != "" {
		mode := model.JSMode(jsMode)
		if !mode.Valid() {
			return nil, nil, fmt.Errorf("%w: --js-mode %q is not one of auto, on, off", model.ErrMalformedSchema, jsMode)
		}
		cfg.Fetch.JSMode = mode
	}
	if runTimeout > 0 {
		cfg.Review.RunTimeout = runTimeout
	}
	if noCache {
		cfg.Cache.Enabled = false
	}
	if rulesetPath != "" {
		cfg.Review.Ruleset = rulesetPath
	}

	p, err := pipeline.NewPipeline(cfg, pipeline.WithPipelineLogger(newLogger(cfg)))
	if err != nil {
		return nil, nil, err
	}
	return p, cfg, nil
}

func runReview(cmd *cobra.Command, args []string) error {
	data, err := readFile(inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	raw, err := validate.DecodeRaw(data)
	if err != nil {
		return err
	}

	p, cfg, err := buildPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	if verbose {
		fmt.Fprintf(os.Stderr, "Reviewing: %s (%s)\n", raw.JournalHomepageURL, raw.PublicationModel)
		fmt.Fprintf(os.Stderr, "Timeout: %v, cache: %v\n\n", cfg.Review.RunTimeout, cfg.Cache.Enabled)
	}

	outcome, err := p.Review(context.Background(), raw)
	if err != nil {
		return fmt.Errorf("review failed: %w", err)
	}

	if err := writeOutcome(outcome); err != nil {
		return err
	}
	printSummary(os.Stderr, outcome.Summary)
	return nil
}

func writeOutcome(outcome *pipeline.Outcome) error {
	if err := writeJSON(outPath, outcome.Summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if structuredOut != "" {
		if err := writeJSON(structuredOut, outcome.Structured); err != nil {
			return fmt.Errorf("write structured submission: %w", err)
		}
	}
	if endogenyOut != "" {
		if err := writeJSON(endogenyOut, outcome.Endogeny); err != nil {
			return fmt.Errorf("write endogeny report: %w", err)
		}
	}
	return nil
}
