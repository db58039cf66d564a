package model

import "time"

// Config holds every tunable of a review run
type Config struct {
	HTTP        HTTPConfig        `yaml:"http" mapstructure:"http"`
	Fetch       FetchConfig       `yaml:"fetch" mapstructure:"fetch"`
	Throttle    ThrottleConfig    `yaml:"throttle" mapstructure:"throttle"`
	Concurrency ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	Render      RenderConfig      `yaml:"render" mapstructure:"render"`
	Cache       CacheConfig       `yaml:"cache" mapstructure:"cache"`
	Intake      IntakeConfig      `yaml:"intake" mapstructure:"intake"`
	Endogeny    EndogenyConfig    `yaml:"endogeny" mapstructure:"endogeny"`
	Rules       RulesConfig       `yaml:"rules" mapstructure:"rules"`
	Review      ReviewConfig      `yaml:"review" mapstructure:"review"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// HTTPConfig controls the static HTTP client
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy" mapstructure:"no_proxy"`
}

// FetchConfig controls retry, TLS fallback and rendering policy
type FetchConfig struct {
	JSMode        JSMode        `yaml:"js_mode" mapstructure:"js_mode"`
	MaxAttempts   int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	BaseBackoff   time.Duration `yaml:"base_backoff" mapstructure:"base_backoff"`
	MaxBackoff    time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
	TLSFallback   bool          `yaml:"tls_fallback" mapstructure:"tls_fallback"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
}

// ThrottleConfig controls the per-domain gate
type ThrottleConfig struct {
	MinInterval time.Duration `yaml:"min_interval" mapstructure:"min_interval"`
}

// ConcurrencyConfig bounds the worker pools
type ConcurrencyConfig struct {
	FetchWorkers     int `yaml:"fetch_workers" mapstructure:"fetch_workers"`
	EvaluatorWorkers int `yaml:"evaluator_workers" mapstructure:"evaluator_workers"`
}

// RenderConfig controls the headless browser path
type RenderConfig struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	ChromePath string        `yaml:"chrome_path" mapstructure:"chrome_path"`
	Settle     time.Duration `yaml:"settle" mapstructure:"settle"`
}

// CacheConfig controls the fetch cache tiers
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	RedisAddr string        `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisDB   int           `yaml:"redis_db" mapstructure:"redis_db"`
}

// IntakeConfig bounds crawling during normalization
type IntakeConfig struct {
	MaxArticlesPerUnit   int `yaml:"max_articles_per_unit" mapstructure:"max_articles_per_unit"`
	MaxLinkCandidates    int `yaml:"max_link_candidates" mapstructure:"max_link_candidates"`
	MaxPolicyChars       int `yaml:"max_policy_chars" mapstructure:"max_policy_chars"`
	ContinuousWindowDays int `yaml:"continuous_window_days" mapstructure:"continuous_window_days"`
}

// EndogenyConfig holds the endogeny thresholds
type EndogenyConfig struct {
	Threshold             float64 `yaml:"threshold" mapstructure:"threshold"`
	FuzzyThreshold        float64 `yaml:"fuzzy_threshold" mapstructure:"fuzzy_threshold"`
	MinContinuousArticles int     `yaml:"min_continuous_articles" mapstructure:"min_continuous_articles"`
}

// RulesConfig holds per-rule parameters shared by the evaluators
type RulesConfig struct {
	AcceptedLicenses            []string `yaml:"accepted_licenses" mapstructure:"accepted_licenses"`
	BoardMinMembers             int      `yaml:"board_min_members" mapstructure:"board_min_members"`
	ReviewerMinCount            int      `yaml:"reviewer_min_count" mapstructure:"reviewer_min_count"`
	ReviewerMaxInstitutionShare float64  `yaml:"reviewer_max_institution_share" mapstructure:"reviewer_max_institution_share"`
}

// ReviewConfig controls a whole run
type ReviewConfig struct {
	RunTimeout time.Duration `yaml:"run_timeout" mapstructure:"run_timeout"`
	Ruleset    string        `yaml:"ruleset" mapstructure:"ruleset"`
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DefaultUserAgent identifies the reviewer to journal sites
const DefaultUserAgent = "DOAJ-Reviewer/0.1 (+https://github.com/ppiankov/doaj-reviewer)"

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      18 * time.Second,
			UserAgent:    DefaultUserAgent,
			MaxBodyBytes: 2_000_000,
		},
		Fetch: FetchConfig{
			JSMode:        JSModeAuto,
			MaxAttempts:   3,
			BaseBackoff:   time.Second,
			MaxBackoff:    8 * time.Second,
			TLSFallback:   true,
			RespectRobots: false,
		},
		Throttle: ThrottleConfig{
			MinInterval: time.Second,
		},
		Concurrency: ConcurrencyConfig{
			FetchWorkers:     8,
			EvaluatorWorkers: 4,
		},
		Render: RenderConfig{
			Enabled: true,
			Settle:  500 * time.Millisecond,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".doaj-reviewer/cache",
			MemoryTTL: 30 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Intake: IntakeConfig{
			MaxArticlesPerUnit:   40,
			MaxLinkCandidates:    120,
			MaxPolicyChars:       120000,
			ContinuousWindowDays: 365,
		},
		Endogeny: EndogenyConfig{
			Threshold:             0.25,
			FuzzyThreshold:        0.94,
			MinContinuousArticles: 5,
		},
		Rules: RulesConfig{
			AcceptedLicenses: []string{
				"CC BY", "CC BY-SA", "CC BY-ND", "CC BY-NC",
				"CC BY-NC-SA", "CC BY-NC-ND", "CC0", "public domain",
			},
			BoardMinMembers:             3,
			ReviewerMinCount:            2,
			ReviewerMaxInstitutionShare: 0.5,
		},
		Review: ReviewConfig{
			RunTimeout: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
