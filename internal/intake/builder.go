package intake

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ppiankov/doaj-reviewer/internal/extract"
	"github.com/ppiankov/doaj-reviewer/internal/extract/adapters"
	"github.com/ppiankov/doaj-reviewer/internal/logging"
	"github.com/ppiankov/doaj-reviewer/internal/model"
	"github.com/ppiankov/doaj-reviewer/internal/worker"
)

// PageFetcher retrieves one URL. Implementations never return nil.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string, mode model.JSMode) *model.FetchResult
}

// Builder turns a raw submission into a structured submission
type Builder struct {
	fetcher  PageFetcher
	cfg      model.IntakeConfig
	workers  int
	adapters *adapters.Registry
	logger   *slog.Logger
	now      func() time.Time
	policy   []string
}

// Option configures a Builder
type Option func(*Builder)

// WithLogger sets the intake logger
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithClock sets the clock used for the crawl timestamp and trailing window
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithAdapters replaces the platform adapter registry
func WithAdapters(r *adapters.Registry) Option {
	return func(b *Builder) { b.adapters = r }
}

// WithPolicyHints adds the rule hints of a ruleset to the policy fields
// intake fetches and binds
func WithPolicyHints(hints ...string) Option {
	return func(b *Builder) { b.policy = model.PolicyHintsWith(hints...) }
}

// NewBuilder creates an intake builder fetching through fetcher
func NewBuilder(fetcher PageFetcher, cfg *model.Config, opts ...Option) *Builder {
	b := &Builder{
		fetcher:  fetcher,
		cfg:      cfg.Intake,
		workers:  cfg.Concurrency.FetchWorkers,
		adapters: adapters.NewRegistry(),
		logger:   logging.Discard(),
		now:      time.Now,
		policy:   model.PolicyHints,
	}
	defaults := model.DefaultConfig().Intake
	if b.cfg.MaxArticlesPerUnit <= 0 {
		b.cfg.MaxArticlesPerUnit = defaults.MaxArticlesPerUnit
	}
	if b.cfg.MaxLinkCandidates <= 0 {
		b.cfg.MaxLinkCandidates = defaults.MaxLinkCandidates
	}
	if b.cfg.MaxPolicyChars <= 0 {
		b.cfg.MaxPolicyChars = defaults.MaxPolicyChars
	}
	if b.cfg.ContinuousWindowDays <= 0 {
		b.cfg.ContinuousWindowDays = defaults.ContinuousWindowDays
	}
	if b.workers < 1 {
		b.workers = 1
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// fieldOrder lists every fetched field: policy hints, then role and unit fields
func (b *Builder) fieldOrder() []string {
	return append(append([]string{}, b.policy...),
		model.HintEditorialBoard, model.HintReviewers, model.HintLatestContent, model.HintArchives)
}

// run holds the state of one Build call
type run struct {
	*Builder
	raw     *model.RawSubmission
	sub     *model.StructuredSubmission
	mode    model.JSMode
	results map[string]*model.FetchResult
	people  map[string]bool
}

// Build fetches every URL-bearing field and normalises the results. It
// never fails: each URL failure is isolated and recorded as evidence.
func (b *Builder) Build(ctx context.Context, raw *model.RawSubmission) *model.StructuredSubmission {
	r := &run{
		Builder: b,
		raw:     raw,
		mode:    raw.JSMode,
		results: make(map[string]*model.FetchResult),
		people:  make(map[string]bool),
		sub: &model.StructuredSubmission{
			SubmissionID:       raw.SubmissionID,
			JournalHomepageURL: strings.TrimSpace(raw.JournalHomepageURL),
			PublicationModel:   raw.PublicationModel,
			CrawlTimestamp:     b.now().UTC(),
			SourceURLs:         CleanSourceURLs(raw.SourceURLs),
			DeclaredISSN:       raw.DeclaredISSN,
			PolicyPages:        []model.PolicyPage{},
			RolePeople:         []model.RolePerson{},
			Units:              []model.Unit{},
			Articles:           []model.Article{},
			Evidence:           []model.EvidenceItem{},
		},
	}

	// Wave 1: every submitted URL; listing pages lead to further waves
	var first []string
	for _, field := range b.fieldOrder() {
		first = append(first, r.sub.SourceURLs[field]...)
	}
	r.fetchAll(ctx, first)

	r.buildPolicyPages()
	r.buildRolePeople()
	switch r.sub.PublicationModel {
	case model.ModelIssueBased:
		r.buildIssueUnits(ctx)
	case model.ModelContinuous:
		r.buildContinuousUnit(ctx)
	}

	b.logger.Info("intake complete",
		"submission", r.sub.SubmissionID,
		"policy_pages", len(r.sub.PolicyPages),
		"people", len(r.sub.RolePeople),
		"units", len(r.sub.Units),
		"articles", len(r.sub.Articles),
	)
	return r.sub
}

// CleanSourceURLs trims URLs, drops empty values and duplicates per field
func CleanSourceURLs(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for field, urls := range in {
		seen := make(map[string]bool)
		var cleaned []string
		for _, u := range urls {
			u = strings.TrimSpace(u)
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			cleaned = append(cleaned, u)
		}
		if len(cleaned) > 0 {
			out[field] = cleaned
		}
	}
	return out
}

type fetchJob struct {
	url     string
	mode    model.JSMode
	fetcher PageFetcher
}

func (j *fetchJob) Execute(ctx context.Context) worker.Result {
	return &fetchOutcome{url: j.url, result: j.fetcher.Fetch(ctx, j.url, j.mode)}
}

type fetchOutcome struct {
	url    string
	result *model.FetchResult
}

func (o *fetchOutcome) GetError() error {
	if o.result.OK() {
		return nil
	}
	return errors.New(o.result.Error)
}

// fetchAll fetches urls not yet fetched in this run, concurrently
func (r *run) fetchAll(ctx context.Context, urls []string) {
	var jobs []worker.Job
	queued := make(map[string]bool)
	for _, u := range urls {
		if _, done := r.results[u]; done || queued[u] {
			continue
		}
		queued[u] = true
		jobs = append(jobs, &fetchJob{url: u, mode: r.mode, fetcher: r.fetcher})
	}
	for _, res := range worker.Run(ctx, r.workers, jobs) {
		outcome := res.(*fetchOutcome)
		result := outcome.result
		if result == nil {
			result = &model.FetchResult{URL: outcome.url, Status: model.FetchError, CrawlNotes: []string{"Fetcher returned no result."}}
		}
		r.results[outcome.url] = result
	}
}

// fetchOne returns the result for u, fetching it if needed
func (r *run) fetchOne(ctx context.Context, u string) *model.FetchResult {
	r.fetchAll(ctx, []string{u})
	return r.results[u]
}

func (r *run) addEvidence(kind model.EvidenceKind, url, excerpt, locator string) {
	r.sub.Evidence = append(r.sub.Evidence, model.EvidenceItem{
		Kind:        kind,
		URL:         url,
		Excerpt:     extract.SafeExcerpt(excerpt, 300),
		LocatorHint: locator,
	})
}

// noteFetch copies a fetch's crawl notes into evidence and adds a WAF
// note when the page was a challenge
func (r *run) noteFetch(hint string, res *model.FetchResult) {
	for _, note := range res.CrawlNotes {
		r.addEvidence(model.EvidenceCrawlNote, res.URL, note, "fetch-"+hint)
	}
	if res.Status == model.FetchBlocked {
		provider := res.ChallengeProvider
		if provider == "" {
			provider = "unknown"
		}
		r.addEvidence(model.EvidenceWAFNote, res.URL,
			"Blocked by anti-bot protection ("+provider+"); page text was discarded.",
			model.WAFLocator(hint))
	}
}

// documentOf rebuilds the parsed page carried by a fetch result
func documentOf(res *model.FetchResult) *extract.Document {
	pageURL := res.FinalURL
	if pageURL == "" {
		pageURL = res.URL
	}
	return &extract.Document{
		URL:         pageURL,
		StatusCode:  res.StatusCode,
		ContentType: res.ContentType,
		Title:       res.Title,
		Text:        res.Text,
		Links:       res.Links,
		Meta:        res.Meta,
		RawHTML:     res.Body,
	}
}
