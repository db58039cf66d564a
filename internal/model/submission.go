package model

import "time"

// PublicationModel is how a journal releases articles
type PublicationModel string

const (
	ModelIssueBased PublicationModel = "issue_based"
	ModelContinuous PublicationModel = "continuous"
)

// JSMode selects when the headless renderer is used
type JSMode string

const (
	JSModeAuto JSMode = "auto"
	JSModeOn   JSMode = "on"
	JSModeOff  JSMode = "off"
)

// Valid reports whether m is a known mode
func (m JSMode) Valid() bool {
	return m == JSModeAuto || m == JSModeOn || m == JSModeOff
}

// Source URL field names. Policy hints double as rule hints.
const (
	HintOpenAccess     = "open_access_statement"
	HintPeerReview     = "peer_review_policy"
	HintLicense        = "license_terms"
	HintCopyright      = "copyright_author_rights"
	HintFees           = "publication_fees_disclosure"
	HintPublisher      = "publisher_identity"
	HintISSN           = "issn_consistency"
	HintAimsScope      = "aims_scope"
	HintInstructions   = "instructions_for_authors"
	HintPlagiarism     = "plagiarism_policy"
	HintArchiving      = "archiving_policy"
	HintRepository     = "repository_policy"
	HintEditorialBoard = "editorial_board"
	HintReviewers      = "reviewers"
	HintLatestContent  = "latest_content"
	HintArchives       = "archives"
	HintEndogeny       = "endogeny"
	HintReviewerComp   = "reviewer_composition"
)

// PolicyHints lists policy fields in the order intake processes them
var PolicyHints = []string{
	HintOpenAccess,
	HintPeerReview,
	HintLicense,
	HintCopyright,
	HintFees,
	HintPublisher,
	HintISSN,
	HintAimsScope,
	HintInstructions,
	HintPlagiarism,
	HintArchiving,
	HintRepository,
}

// builtinFields are source fields and derived hints that never name a
// policy page of their own
var builtinFields = map[string]bool{
	HintEditorialBoard: true,
	HintReviewers:      true,
	HintLatestContent:  true,
	HintArchives:       true,
	HintEndogeny:       true,
	HintReviewerComp:   true,
}

// PolicyHintsWith returns PolicyHints followed by the extra hints a
// ruleset binds rules to. Built-in and repeated hints are skipped.
func PolicyHintsWith(extra ...string) []string {
	out := append([]string{}, PolicyHints...)
	seen := make(map[string]bool, len(out)+len(extra))
	for _, hint := range out {
		seen[hint] = true
	}
	for _, hint := range extra {
		if hint == "" || seen[hint] || builtinFields[hint] {
			continue
		}
		seen[hint] = true
		out = append(out, hint)
	}
	return out
}

// KnownSourceFields returns every accepted source_urls key, including the
// extra policy hints of the active ruleset
func KnownSourceFields(extra ...string) map[string]bool {
	fields := map[string]bool{
		HintEditorialBoard: true,
		HintReviewers:      true,
		HintLatestContent:  true,
		HintArchives:       true,
	}
	for _, hint := range PolicyHintsWith(extra...) {
		fields[hint] = true
	}
	return fields
}

// RawSubmission is the applicant input consumed once by intake
type RawSubmission struct {
	SubmissionID       string                   `json:"submission_id"`
	JournalHomepageURL string                   `json:"journal_homepage_url"`
	PublicationModel   PublicationModel         `json:"publication_model"`
	JSMode             JSMode                   `json:"js_mode,omitempty"`
	SourceURLs         map[string][]string      `json:"source_urls"`
	ManualFallback     map[string]ManualPayload `json:"manual_fallback,omitempty"`
	DeclaredISSN       DeclaredISSN             `json:"declared_issn,omitempty"`
}

// ManualPayload is pasted text or an uploaded PDF for one field
type ManualPayload struct {
	Text     string `json:"text,omitempty"`
	PDFBytes []byte `json:"pdf_bytes,omitempty"`
}

// DeclaredISSN holds the ISSNs stated on the application form
type DeclaredISSN struct {
	Print      string `json:"print,omitempty" yaml:"print,omitempty"`
	Electronic string `json:"electronic,omitempty" yaml:"electronic,omitempty"`
}

// Role of a person listed by the journal
type Role string

const (
	RoleEditor      Role = "editor"
	RoleBoardMember Role = "board_member"
	RoleReviewer    Role = "reviewer"
)

// RolePerson is one named person in one role
type RolePerson struct {
	Name        string `json:"name"`
	Role        Role   `json:"role"`
	Institution string `json:"institution,omitempty"`
	SourceURL   string `json:"source_url,omitempty"`
}

// PageSource records where policy text came from
type PageSource string

const (
	SourceFetch  PageSource = "fetch"
	SourceManual PageSource = "manual"
)

// PolicyPage is extracted text bound to a rule hint
type PolicyPage struct {
	RuleHint string     `json:"rule_hint"`
	URL      string     `json:"url"`
	Title    string     `json:"title,omitempty"`
	Text     string     `json:"text"`
	Source   PageSource `json:"source"`
}

// Article is one research article inside a measurement unit
type Article struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Authors       []string `json:"authors"`
	ArticleType   string   `json:"article_type,omitempty"`
	UnitID        string   `json:"unit_id"`
	PublishedDate string   `json:"publication_date,omitempty"`
}

// Window types of measurement units
const (
	WindowIssue          = "issue"
	WindowTrailingPeriod = "trailing_period"
)

// Unit is one endogeny measurement window. Unidentified marks a unit whose
// page could not be fetched; units given in structured input are identified
// unless they say otherwise.
type Unit struct {
	ID           string `json:"unit_id"`
	Label        string `json:"label"`
	WindowType   string `json:"window_type"`
	SourceURL    string `json:"source_url,omitempty"`
	Unidentified bool   `json:"unidentified,omitempty"`
}

// StructuredSubmission is the normalized, read-only evaluation input
type StructuredSubmission struct {
	SubmissionID       string              `json:"submission_id"`
	JournalHomepageURL string              `json:"journal_homepage_url"`
	PublicationModel   PublicationModel    `json:"publication_model"`
	CrawlTimestamp     time.Time           `json:"crawl_timestamp_utc"`
	SourceURLs         map[string][]string `json:"source_urls"`
	DeclaredISSN       DeclaredISSN        `json:"declared_issn,omitempty"`
	PolicyPages        []PolicyPage        `json:"policy_pages"`
	RolePeople         []RolePerson        `json:"role_people"`
	Units              []Unit              `json:"units"`
	Articles           []Article           `json:"articles"`
	Evidence           []EvidenceItem      `json:"evidence"`
}

// PagesFor returns the policy pages bound to a hint, in intake order
func (s *StructuredSubmission) PagesFor(hint string) []PolicyPage {
	var pages []PolicyPage
	for _, page := range s.PolicyPages {
		if page.RuleHint == hint && page.URL != "" {
			pages = append(pages, page)
		}
	}
	return pages
}

// URLsFor returns the submitted URLs for a field
func (s *StructuredSubmission) URLsFor(hint string) []string {
	if s.SourceURLs == nil {
		return nil
	}
	return s.SourceURLs[hint]
}

// ArticlesIn returns the articles of one unit
func (s *StructuredSubmission) ArticlesIn(unitID string) []Article {
	var out []Article
	for _, article := range s.Articles {
		if article.UnitID == unitID {
			out = append(out, article)
		}
	}
	return out
}

// PeopleWithRole returns role people having any of the given roles
func (s *StructuredSubmission) PeopleWithRole(roles ...Role) []RolePerson {
	var out []RolePerson
	for _, person := range s.RolePeople {
		for _, role := range roles {
			if person.Role == role {
				out = append(out, person)
				break
			}
		}
	}
	return out
}
