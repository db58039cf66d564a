package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/doaj-reviewer/internal/model"
)

// Reviewer reviews one raw submission file
type Reviewer interface {
	ReviewFile(ctx context.Context, path string) (*model.ReviewSummary, error)
}

// ReviewJob represents one submission file to review
type ReviewJob struct {
	Path     string
	Reviewer Reviewer
}

// Execute executes the review job
func (j *ReviewJob) Execute(ctx context.Context) Result {
	summary, err := j.Reviewer.ReviewFile(ctx, j.Path)
	if err != nil {
		return &BatchResult{Path: j.Path, Error: err}
	}
	return &BatchResult{Path: j.Path, Summary: summary}
}

// BatchResult represents the result of a review job
type BatchResult struct {
	Path    string
	Summary *model.ReviewSummary
	Error   error
}

// GetError returns the error from the review result
func (r *BatchResult) GetError() error {
	return r.Error
}

// BatchProcessor reviews multiple submissions concurrently
type BatchProcessor struct {
	reviewer    Reviewer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(reviewer Reviewer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		reviewer:    reviewer,
		concurrency: concurrency,
	}
}

// ProcessPaths reviews submission files, returning results in input order
func (b *BatchProcessor) ProcessPaths(ctx context.Context, paths []string) []*BatchResult {
	jobs := make([]Job, len(paths))
	for i, path := range paths {
		jobs[i] = &ReviewJob{Path: path, Reviewer: b.reviewer}
	}

	results := Run(ctx, b.concurrency, jobs)
	out := make([]*BatchResult, len(results))
	for i, result := range results {
		out[i] = result.(*BatchResult)
	}
	return out
}

// ProcessDir reviews every *.json file in dir
func (b *BatchProcessor) ProcessDir(ctx context.Context, dir string) ([]*BatchResult, error) {
	paths, err := ListSubmissionFiles(dir)
	if err != nil {
		return nil, err
	}
	return b.ProcessPaths(ctx, paths), nil
}

// ProcessFile reads submission paths from a list file and reviews them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BatchResult, error) {
	paths, err := ReadPathsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessPaths(ctx, paths), nil
}

// ListSubmissionFiles returns the *.json files of dir in lexical order
func ListSubmissionFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// ReadPathsFromFile reads submission paths from a file (one per line).
// Relative paths resolve against the list file's directory.
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(filePath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}
