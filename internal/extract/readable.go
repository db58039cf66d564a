package extract

import (
	"net/url"
	"strings"

	"github.com/go-shiori/go-readability"
)

// ReadableArticle is the main content readability found on a page
type ReadableArticle struct {
	Title  string
	Byline string
	Text   string
}

// Readable runs readability over the raw HTML of doc
func Readable(doc *Document) (ReadableArticle, bool) {
	if strings.TrimSpace(doc.RawHTML) == "" {
		return ReadableArticle{}, false
	}
	pageURL, err := url.Parse(doc.URL)
	if err != nil {
		pageURL = nil
	}

	article, err := readability.FromReader(strings.NewReader(doc.RawHTML), pageURL)
	if err != nil {
		return ReadableArticle{}, false
	}
	return ReadableArticle{
		Title:  strings.TrimSpace(article.Title),
		Byline: strings.TrimSpace(article.Byline),
		Text:   NormalizeText(article.TextContent),
	}, true
}

// MainText returns readability's main text, or the full page text when shorter
func MainText(doc *Document) string {
	readable, ok := Readable(doc)
	if !ok || len(readable.Text) < len(doc.Text)/4 {
		return doc.Text
	}
	return readable.Text
}
