package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/doaj-reviewer/internal/cache"
	"github.com/ppiankov/doaj-reviewer/internal/intake"
	"github.com/ppiankov/doaj-reviewer/internal/logging"
	"github.com/ppiankov/doaj-reviewer/internal/model"
	"github.com/ppiankov/doaj-reviewer/internal/rules"
	"github.com/ppiankov/doaj-reviewer/internal/score"
	"github.com/ppiankov/doaj-reviewer/internal/util"
	"github.com/ppiankov/doaj-reviewer/internal/validate"
)

// Pipeline orchestrates a review: validate, intake, evaluate, aggregate
type Pipeline struct {
	config  *model.Config
	builder *intake.Builder
	engine  *rules.Engine
	scorer  *score.Scorer
	logger  *slog.Logger
	now     func() time.Time
	runID   func() string
	closers []func() error
}

// Outcome is everything a review produces. Reporting reads these values
// and never re-derives verdicts.
type Outcome struct {
	Summary    *model.ReviewSummary
	Structured *model.StructuredSubmission
	Endogeny   model.EndogenyReport
}

type options struct {
	fetcher  intake.PageFetcher
	ruleset  *rules.Ruleset
	registry *rules.Registry
	logger   *slog.Logger
	now      func() time.Time
	runID    func() string
}

// Option configures a Pipeline
type Option func(*options)

// WithPageFetcher replaces the network fetcher
func WithPageFetcher(f intake.PageFetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithRuleset replaces the configured ruleset
func WithRuleset(rs *rules.Ruleset) Option {
	return func(o *options) { o.ruleset = rs }
}

// WithRegistry replaces the built-in evaluator registry
func WithRegistry(r *rules.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithPipelineLogger sets the logger shared by every stage
func WithPipelineLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock sets the time source for crawl and summary timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRunIDs sets the run id generator
func WithRunIDs(next func() string) Option {
	return func(o *options) { o.runID = next }
}

// NewPipeline builds every stage from cfg. Ruleset and registry problems
// are returned here, before anything is fetched.
func NewPipeline(cfg *model.Config, opts ...Option) (*Pipeline, error) {
	o := options{
		logger: logging.Discard(),
		now:    time.Now,
		runID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}

	rs := o.ruleset
	if rs == nil {
		var err error
		rs, err = loadRuleset(cfg.Review.Ruleset)
		if err != nil {
			return nil, err
		}
	}
	reg := o.registry
	if reg == nil {
		var err error
		reg, err = rules.DefaultRegistry(cfg)
		if err != nil {
			return nil, err
		}
	}
	engine, err := rules.NewEngine(rs, reg,
		rules.WithWorkers(cfg.Concurrency.EvaluatorWorkers),
		rules.WithEngineLogger(o.logger))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		config: cfg,
		engine: engine,
		scorer: score.NewScorer(),
		logger: o.logger,
		now:    o.now,
		runID:  o.runID,
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = p.newFetcher()
	}
	p.builder = intake.NewBuilder(fetcher, cfg,
		intake.WithLogger(o.logger),
		intake.WithClock(o.now),
		intake.WithPolicyHints(rs.Hints()...))
	return p, nil
}

func loadRuleset(path string) (*rules.Ruleset, error) {
	if path == "" {
		return rules.DefaultRuleset(), nil
	}
	return rules.LoadRuleset(path)
}

// newFetcher wires the network fetcher with its cache, renderer and robots
// checker as configured
func (p *Pipeline) newFetcher() *Fetcher {
	cfg := p.config
	opts := []FetcherOption{WithLogger(p.logger)}

	if cfg.Cache.Enabled {
		var redis *cache.RedisCache
		if cfg.Cache.RedisAddr != "" {
			rc, err := cache.NewRedisCache(context.Background(), cfg.Cache.RedisAddr, cfg.Cache.RedisDB, cfg.Cache.DiskTTL)
			if err != nil {
				p.logger.Warn("redis cache unavailable", "addr", cfg.Cache.RedisAddr, "error", err)
			} else {
				redis = rc
				p.closers = append(p.closers, rc.Close)
			}
		}
		layered := cache.NewDefaultCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL, redis)
		opts = append(opts, WithFetchStore(cache.NewFetchStore(layered, cfg.Cache.DiskTTL)))
	}

	if cfg.Render.Enabled && cfg.Fetch.JSMode != model.JSModeOff {
		renderer := NewChromeRenderer(cfg.Render, cfg.HTTP.UserAgent, cfg.HTTP.Timeout)
		opts = append(opts, WithRenderer(renderer))
		p.closers = append(p.closers, func() error {
			renderer.Close()
			return nil
		})
	}

	if cfg.Fetch.RespectRobots {
		client := newHTTPClient(cfg.HTTP, false)
		opts = append(opts, WithRobots(util.NewRobotsChecker(cfg.HTTP.UserAgent, client, cfg.HTTP.Timeout)))
	}

	return NewFetcher(cfg, opts...)
}

// Close releases the renderer and cache connections
func (p *Pipeline) Close() error {
	var first error
	for _, c := range p.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	p.closers = nil
	return first
}

// Ruleset returns the ruleset the pipeline evaluates
func (p *Pipeline) Ruleset() *rules.Ruleset {
	return p.engine.Ruleset()
}

// Intake validates a raw submission and builds the structured submission.
// Only schema errors are returned.
func (p *Pipeline) Intake(ctx context.Context, raw *model.RawSubmission) (*model.StructuredSubmission, error) {
	if err := validate.Raw(raw, p.engine.Ruleset().Hints()...); err != nil {
		return nil, err
	}
	if timeout := p.config.Review.RunTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.builder.Build(ctx, raw), nil
}

// Review runs the full review of a raw submission. Network and evaluator
// failures become verdicts; only schema errors are returned.
func (p *Pipeline) Review(ctx context.Context, raw *model.RawSubmission) (*Outcome, error) {
	sub, err := p.Intake(ctx, raw)
	if err != nil {
		return nil, err
	}
	return p.Evaluate(sub), nil
}

// EvaluateStructured validates a pre-built structured submission and evaluates it
func (p *Pipeline) EvaluateStructured(sub *model.StructuredSubmission) (*Outcome, error) {
	if err := validate.Structured(sub, p.engine.Ruleset().Hints()...); err != nil {
		return nil, err
	}
	return p.Evaluate(sub), nil
}

// Evaluate runs the rule engine and the aggregator over a structured
// submission. Verdicts depend only on the submission.
func (p *Pipeline) Evaluate(sub *model.StructuredSubmission) *Outcome {
	evaluation := p.engine.Evaluate(sub)
	decision := p.scorer.Calculate(evaluation.Checks, evaluation.Supplementary)

	summary := &model.ReviewSummary{
		RunID:               p.runID(),
		SubmissionID:        sub.SubmissionID,
		HomepageURL:         sub.JournalHomepageURL,
		RulesetID:           evaluation.RulesetID,
		RulesetVersion:      evaluation.RulesetVersion,
		GeneratedAt:         p.now().UTC(),
		OverallResult:       decision.Result,
		DecisionReason:      decision.Reason,
		MustCounts:          decision.MustCounts,
		SupplementaryCounts: decision.SupplementaryCounts,
		Checks:              evaluation.Checks,
		SupplementaryChecks: evaluation.Supplementary,
	}

	p.logger.Info("review complete",
		"submission", sub.SubmissionID,
		"result", summary.OverallResult,
		"pass", summary.MustCounts.Pass,
		"fail", summary.MustCounts.Fail,
		"need_human_review", summary.MustCounts.NeedHumanReview,
	)

	return &Outcome{
		Summary:    summary,
		Structured: sub,
		Endogeny:   evaluation.Endogeny,
	}
}

// ReviewFile reviews the raw submission stored at path
func (p *Pipeline) ReviewFile(ctx context.Context, path string) (*model.ReviewSummary, error) {
	outcome, err := p.ReviewFileOutcome(ctx, path)
	if err != nil {
		return nil, err
	}
	return outcome.Summary, nil
}

// ReviewFileOutcome reviews the raw submission stored at path and returns
// every artifact
func (p *Pipeline) ReviewFileOutcome(ctx context.Context, path string) (*Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read submission: %w", err)
	}
	raw, err := validate.DecodeRaw(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p.Review(ctx, raw)
}
