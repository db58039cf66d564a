package extract

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Document is a parsed HTML page: visible text, links and meta values
type Document struct {
	URL         string
	StatusCode  int
	ContentType string
	Title       string
	Text        string
	Links       []string
	Meta        map[string][]string
	RawHTML     string
}

var (
	blockTags = map[string]bool{
		"p": true, "div": true, "section": true, "article": true, "li": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"tr": true, "table": true, "ul": true, "ol": true, "dd": true, "dt": true,
		"header": true, "footer": true, "main": true, "nav": true, "blockquote": true,
	}
	skipTags = map[string]bool{"script": true, "style": true, "noscript": true, "template": true}

	horizontalSpace = regexp.MustCompile(`[ \t\r\f\v]+`)
	extraNewlines   = regexp.MustCompile(`\n{3,}`)
	anySpace        = regexp.MustCompile(`\s+`)
)

// ParseDocument parses an HTML body fetched from pageURL
func ParseDocument(pageURL string, statusCode int, contentType, body string) *Document {
	doc := &Document{
		URL:         pageURL,
		StatusCode:  statusCode,
		ContentType: contentType,
		Meta:        make(map[string][]string),
		RawHTML:     body,
	}

	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		// x/net/html only fails on reader errors; keep the raw text
		doc.Text = NormalizeText(body)
		return doc
	}

	base, _ := url.Parse(pageURL)
	var text, title strings.Builder
	seenLinks := make(map[string]bool)

	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inTitle bool) {
		switch n.Type {
		case html.TextNode:
			if inTitle {
				title.WriteString(n.Data)
			}
			text.WriteString(n.Data)
			text.WriteString(" ")
			return
		case html.ElementNode:
			tag := n.Data
			if skipTags[tag] {
				return
			}
			switch tag {
			case "title":
				inTitle = true
			case "br":
				text.WriteString("\n")
			case "td", "th":
				if previousElement(n) != nil {
					text.WriteString(" | ")
				}
			case "a":
				if href := attr(n, "href"); href != "" && base != nil {
					if link := resolveURL(base, href); link != "" && !seenLinks[link] {
						seenLinks[link] = true
						doc.Links = append(doc.Links, link)
					}
				}
			case "meta":
				key := attr(n, "name")
				if key == "" {
					key = attr(n, "property")
				}
				if key == "" {
					key = attr(n, "http-equiv")
				}
				key = strings.ToLower(strings.TrimSpace(key))
				value := strings.TrimSpace(attr(n, "content"))
				if key != "" && value != "" {
					doc.Meta[key] = append(doc.Meta[key], value)
				}
			}
			if blockTags[tag] {
				text.WriteString("\n")
			}
			defer func() {
				if blockTags[tag] {
					text.WriteString("\n")
				}
			}()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inTitle)
		}
	}
	walk(root, false)

	doc.Title = strings.TrimSpace(anySpace.ReplaceAllString(title.String(), " "))
	doc.Text = NormalizeText(text.String())
	return doc
}

// NormalizeText collapses horizontal whitespace and blank-line runs
func NormalizeText(s string) string {
	s = horizontalSpace.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = extraNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// MetaValues returns the distinct values of the given meta keys, in key order
func (d *Document) MetaValues(keys ...string) []string {
	var values []string
	seen := make(map[string]bool)
	for _, key := range keys {
		for _, value := range d.Meta[strings.ToLower(key)] {
			if value != "" && !seen[value] {
				seen[value] = true
				values = append(values, value)
			}
		}
	}
	return values
}

// HasCitationMeta reports whether scholarly citation_* meta tags are present
func (d *Document) HasCitationMeta() bool {
	for key := range d.Meta {
		if strings.HasPrefix(key, "citation_") {
			return true
		}
	}
	return false
}

// Lines returns the non-empty trimmed lines of the text
func (d *Document) Lines() []string {
	return TopLines(d.Text, -1)
}

// TopLines returns at most limit non-empty lines (all when limit < 0)
func TopLines(text string, limit int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if limit >= 0 && len(lines) >= limit {
			break
		}
		lines = append(lines, line)
	}
	return lines
}

// SafeExcerpt collapses whitespace and truncates to limit runes
func SafeExcerpt(text string, limit int) string {
	cleaned := strings.TrimSpace(anySpace.ReplaceAllString(text, " "))
	runes := []rune(cleaned)
	if len(runes) <= limit {
		return cleaned
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// SameSite reports whether two URLs share a host or one is a subdomain of the other
func SameSite(a, b string) bool {
	hostA := hostOf(a)
	hostB := hostOf(b)
	if hostA == "" || hostB == "" {
		return false
	}
	return hostA == hostB || strings.HasSuffix(hostA, "."+hostB) || strings.HasSuffix(hostB, "."+hostA)
}

// URLPath returns the lower-cased path of a URL
func URLPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Path)
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Host)
}

// resolveURL resolves a relative URL against a base URL
func resolveURL(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "javascript:") || strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") {
		return ""
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func previousElement(n *html.Node) *html.Node {
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}
