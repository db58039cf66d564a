package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/doaj-reviewer/internal/model"
	"github.com/ppiankov/doaj-reviewer/internal/worker"
)

var (
	batchDir     string
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch [--dir <dir> | <dir|file>]",
	Short: "Review many raw submissions in parallel",
	Long: `Batch reviews every raw submission JSON in a directory, or every path
listed in a text file (one per line, # comments allowed):
- Submissions are reviewed concurrently with a bounded worker count
- Each run writes <submission>.summary.json into the output directory
- A malformed submission is reported and does not stop the batch

Example:
  doaj-reviewer batch --dir submissions/ --out-dir results
  doaj-reviewer batch submissions/ --concurrency 4
  doaj-reviewer batch paths.txt --batch-timeout 1h`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addRunFlags(batchCmd)

	batchCmd.Flags().StringVar(&batchDir, "dir", "", "directory of raw submission JSON files")
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of submissions reviewed at once")
	batchCmd.Flags().StringVar(&outputDir, "out-dir", "./doaj-reviews", "output directory for summaries")
	batchCmd.Flags().DurationVar(&batchTimeout, "batch-timeout", 2*time.Hour, "total timeout for batch processing")
}

func runBatch(cmd *cobra.Command, args []string) error {
	source := batchDir
	if len(args) == 1 {
		source = args[0]
	}
	if source == "" {
		return fmt.Errorf("batch needs --dir or a directory/list-file argument")
	}

	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	p, cfg, err := buildPipeline()
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  DOAJ Batch Review\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s\n", source)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Run timeout:  %v per submission\n", cfg.Review.RunTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := worker.NewBatchProcessor(p, concurrency)

	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("stat %s: %w", source, err)
	}
	var results []*worker.BatchResult
	if info.IsDir() {
		results, err = processor.ProcessDir(ctx, source)
	} else {
		results, err = processor.ProcessFile(ctx, source)
	}
	if err != nil {
		return fmt.Errorf("process %s: %w", source, err)
	}

	counts := map[model.Result]int{}
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, result.Error)
			continue
		}

		summary := result.Summary
		name := summary.SubmissionID
		if name == "" {
			name = strings.TrimSuffix(filepath.Base(result.Path), filepath.Ext(result.Path))
		}
		jsonPath := filepath.Join(outputDir, sanitizeFilename(name)+".summary.json")
		if err := writeJSON(jsonPath, summary); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Path, err)
			continue
		}

		counts[summary.OverallResult]++
		fmt.Fprintf(os.Stderr, "%s %s: %s (%d/%d must rules passed)\n",
			resultMark(summary.OverallResult), name, summary.OverallResult,
			summary.MustCounts.Pass, len(summary.Checks))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:              %d submissions\n", len(results))
	fmt.Fprintf(os.Stderr, "  Pass:               %d\n", counts[model.ResultPass])
	fmt.Fprintf(os.Stderr, "  Fail:               %d\n", counts[model.ResultFail])
	fmt.Fprintf(os.Stderr, "  Need human review:  %d\n", counts[model.ResultNeedHumanReview])
	fmt.Fprintf(os.Stderr, "  Errors:             %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:             %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}
