package model

// FetchStatus is the outcome class of one fetch
type FetchStatus string

const (
	FetchOK      FetchStatus = "ok"
	FetchBlocked FetchStatus = "blocked"
	FetchError   FetchStatus = "error"
)

// FetchResult is the outcome of retrieving one URL. Text of a blocked
// result is always empty.
type FetchResult struct {
	URL               string              `json:"url"`
	FinalURL          string              `json:"final_url,omitempty"`
	Status            FetchStatus         `json:"status"`
	StatusCode        int                 `json:"status_code,omitempty"`
	ContentType       string              `json:"content_type,omitempty"`
	Title             string              `json:"title,omitempty"`
	Text              string              `json:"text"`
	Body              string              `json:"body,omitempty"`
	Links             []string            `json:"links,omitempty"`
	Meta              map[string][]string `json:"meta,omitempty"`
	CrawlNotes        []string            `json:"crawl_notes"`
	ChallengeDetected bool                `json:"challenge_detected"`
	ChallengeProvider string              `json:"challenge_provider,omitempty"`
	Rendered          bool                `json:"rendered,omitempty"`
	InsecureTLS       bool                `json:"insecure_tls,omitempty"`
	FromCache         bool                `json:"from_cache,omitempty"`
	ErrorKind         ErrorKind           `json:"error_kind,omitempty"`
	Error             string              `json:"error,omitempty"`
}

// Note appends a crawl note
func (r *FetchResult) Note(note string) {
	r.CrawlNotes = append(r.CrawlNotes, note)
}

// OK reports whether usable text was retrieved
func (r *FetchResult) OK() bool {
	return r != nil && r.Status == FetchOK
}
