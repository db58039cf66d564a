package pipeline

import (
	"net/http"
	"strings"

	"github.com/ppiankov/doaj-reviewer/internal/extract"
)

// Challenge is the outcome of anti-bot interstitial detection
type Challenge struct {
	Blocked  bool
	Provider string
	Reason   string
}

var (
	suspiciousStatuses = map[int]bool{401: true, 403: true, 406: true, 409: true, 429: true, 503: true}

	// Ordered: the first provider with a matching token wins. Tokens and
	// markers match whole words, so cdnjs.cloudflare.com, akamaihd.net and
	// g-recaptcha name no provider and raise no marker.
	challengeProviders = []struct {
		name   string
		tokens []string
	}{
		{"cloudflare", []string{"cloudflare", "__cf_chl_", "cf-ray", "cf-chl", "just a moment..."}},
		{"akamai", []string{"akamai", "akamai ghost", "akamaibot"}},
		{"imperva", []string{"imperva", "incapsula"}},
		{"sucuri", []string{"sucuri", "sucuri website firewall"}},
		{"generic_waf", []string{"web application firewall", "waf", "ddos protection"}},
	}

	strongChallengeMarkers = []string{
		"checking your browser before accessing",
		"attention required!",
		"verify you are human",
		"please enable cookies",
		"captcha",
		"turnstile",
		"security check",
		"request blocked",
		"access denied",
		"automated queries",
		"bot protection",
		"challenge platform",
	}
	genericChallengeMarkers = []string{
		"forbidden",
		"temporarily unavailable",
		"rate limited",
		"too many requests",
		"blocked",
		"challenge",
	}
)

const shortShellChars = 700

// DetectChallenge classifies a fetched page as an anti-bot interstitial.
// Vendor headers only name a provider when the page already looks like a
// shell or carries a suspicious status, since many real sites sit behind
// the same CDNs.
func DetectChallenge(doc *extract.Document, headers http.Header) Challenge {
	blob := strings.ToLower(doc.Title + "\n" + truncate(doc.Text, 5000) + "\n" + truncate(doc.RawHTML, 15000))
	suspicious := suspiciousStatuses[doc.StatusCode]
	shortShell := len(strings.TrimSpace(doc.Text)) < shortShellChars

	provider := ""
	for _, p := range challengeProviders {
		if containsAnyToken(blob, p.tokens) {
			provider = p.name
			break
		}
	}
	if provider == "" && (suspicious || shortShell) {
		provider = headerProvider(headers)
	}

	var strong, generic []string
	for _, marker := range strongChallengeMarkers {
		if containsToken(blob, marker) {
			strong = append(strong, marker)
		}
	}
	for _, marker := range genericChallengeMarkers {
		if containsToken(blob, marker) {
			generic = append(generic, marker)
		}
	}
	if headers != nil && strings.EqualFold(headers.Get("Cf-Mitigated"), "challenge") {
		strong = append(strong, "cf-mitigated challenge")
	}
	markers := len(strong) + len(generic)

	var c Challenge
	switch {
	case len(strong) > 0 && (suspicious || shortShell || provider != ""):
		c.Blocked = true
	case provider != "" && markers >= 2 && (suspicious || shortShell):
		c.Blocked = true
	case suspicious && markers >= 3:
		c.Blocked = true
	}

	c.Provider = provider
	if len(strong) > 0 {
		c.Reason = strong[0]
	} else if len(generic) > 0 {
		c.Reason = generic[0]
	}
	return c
}

// IsChallenge reports whether an HTML body served with headers is a challenge page
func IsChallenge(html string, headers http.Header) bool {
	status := http.StatusOK
	contentType := ""
	if headers != nil {
		contentType = headers.Get("Content-Type")
	}
	doc := extract.ParseDocument("", status, contentType, html)
	return DetectChallenge(doc, headers).Blocked
}

func headerProvider(headers http.Header) string {
	if headers == nil {
		return ""
	}
	server := strings.ToLower(headers.Get("Server"))
	switch {
	case strings.Contains(server, "cloudflare") || headers.Get("Cf-Ray") != "":
		return "cloudflare"
	case strings.Contains(server, "akamai"):
		return "akamai"
	case headers.Get("X-Iinfo") != "" || strings.Contains(strings.ToLower(headers.Get("X-Cdn")), "incapsula"):
		return "imperva"
	case headers.Get("X-Sucuri-Id") != "" || strings.Contains(server, "sucuri"):
		return "sucuri"
	}
	return ""
}

func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

func containsAnyToken(s string, tokens []string) bool {
	for _, token := range tokens {
		if containsToken(s, token) {
			return true
		}
	}
	return false
}

// containsToken reports whether token occurs in s as a whole word: not
// inside a longer word, host name or identifier. A side of the token that
// is itself punctuation needs no boundary.
func containsToken(s, token string) bool {
	if token == "" {
		return false
	}
	checkLeft := alnumByte(token[0])
	checkRight := alnumByte(token[len(token)-1])
	for offset := 0; offset <= len(s)-len(token); {
		i := strings.Index(s[offset:], token)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(token)
		if (!checkLeft || !joinedLeft(s, start)) && (!checkRight || !joinedRight(s, end)) {
			return true
		}
		offset = start + 1
	}
	return false
}

func alnumByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func wordByte(b byte) bool {
	return alnumByte(b) || b == '_' || b >= 0x80
}

// joinedLeft reports whether the text before start continues a word. A dot
// or hyphen joins only when a word character precedes it, as in a host name.
func joinedLeft(s string, start int) bool {
	if start == 0 {
		return false
	}
	switch b := s[start-1]; {
	case wordByte(b):
		return true
	case b == '.' || b == '-':
		return start >= 2 && wordByte(s[start-2])
	}
	return false
}

func joinedRight(s string, end int) bool {
	if end >= len(s) {
		return false
	}
	switch b := s[end]; {
	case wordByte(b):
		return true
	case b == '.' || b == '-':
		return end+1 < len(s) && wordByte(s[end+1])
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
