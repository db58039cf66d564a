package model

// Result is the outcome of one rule or of the whole review
type Result string

const (
	ResultPass            Result = "pass"
	ResultFail            Result = "fail"
	ResultNeedHumanReview Result = "need_human_review"
)

// Evidence status of a verdict
const (
	EvidencePolicyExtracted   = "policy_text_extracted"
	EvidenceBlocked           = "blocked_by_challenge"
	EvidenceNotesOnly         = "crawl_notes_without_policy_text"
	EvidenceURLWithoutText    = "url_provided_but_no_policy_text"
	EvidenceURLNotProvided    = "url_not_provided"
	EvidenceStructuredContent = "structured_content"
)

// RuleVerdict is the immutable outcome of one rule evaluation
type RuleVerdict struct {
	RuleID         string        `json:"rule_id"`
	RuleHint       string        `json:"rule_hint"`
	Must           bool          `json:"must"`
	Implemented    bool          `json:"implemented"`
	Result         Result        `json:"result"`
	Confidence     float64       `json:"confidence"`
	Notes          []string      `json:"notes"`
	EvidenceURLs   []string      `json:"evidence_urls"`
	EvidenceStatus string        `json:"evidence_status,omitempty"`
	CrawlNotes     []string      `json:"crawl_notes,omitempty"`
	Matches        []SignalMatch `json:"matches,omitempty"`
}

// SignalMatch is one matched snippet backing a verdict
type SignalMatch struct {
	Signal  string `json:"signal"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet"`
}

// EndogenyMetric is the audited measurement of one unit
type EndogenyMetric struct {
	UnitID      string  `json:"unit_id"`
	Label       string  `json:"label"`
	WindowType  string  `json:"window_type"`
	Denominator int     `json:"research_articles"`
	Numerator   int     `json:"matched_articles"`
	Ratio       float64 `json:"ratio"`
	Threshold   float64 `json:"threshold"`
	Sufficient  bool    `json:"sufficient"`
}

// MatchedArticle records why an article counted towards a numerator
type MatchedArticle struct {
	UnitID      string  `json:"unit_id"`
	Title       string  `json:"title"`
	URL         string  `json:"url"`
	Author      string  `json:"author"`
	MatchedName string  `json:"matched_name"`
	Role        Role    `json:"role"`
	Method      string  `json:"method"`
	Score       float64 `json:"score"`
}

// EndogenyReport is the audit artifact of the endogeny evaluator
type EndogenyReport struct {
	Verdict         RuleVerdict      `json:"verdict"`
	Metrics         []EndogenyMetric `json:"metrics"`
	MatchedArticles []MatchedArticle `json:"matched_articles"`
	Limitations     []string         `json:"limitations"`
	MaxRatio        float64          `json:"max_ratio"`
	Explanation     string           `json:"explanation"`
}
