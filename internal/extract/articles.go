package extract

import (
	"strings"
)

var (
	authorMetaKeys = []string{"citation_author", "dc.creator", "dc.contributor.author", "author"}
	titleMetaKeys  = []string{"citation_title", "og:title", "twitter:title"}
	typeMetaKeys   = []string{"citation_article_type", "dc.type", "article:section"}
	dateMetaKeys   = []string{
		"citation_publication_date",
		"citation_date",
		"dc.date",
		"prism.publicationdate",
		"article:published_time",
	}

	excludedArticleTerms = []string{
		"editorial", "correction", "corrigendum", "erratum",
		"retraction", "letter", "news", "book review",
	}
)

// ArticleInfo is article metadata read from one article page
type ArticleInfo struct {
	Title         string
	URL           string
	Authors       []string
	ArticleType   string
	PublishedDate string
}

// IsResearchArticle reports whether type and title name a research article.
// Editorials, corrections, errata, retractions, letters, news and book
// reviews are excluded.
func IsResearchArticle(articleType, title string) bool {
	blob := strings.ToLower(articleType + " " + title)
	for _, term := range excludedArticleTerms {
		if strings.Contains(blob, term) {
			return false
		}
	}
	return true
}

// ArticleFromDocument reads a research article from its landing page.
// It returns false when no authors are found or the page is not research.
func ArticleFromDocument(doc *Document) (ArticleInfo, bool) {
	authors := doc.MetaValues(authorMetaKeys...)

	title := ""
	if titles := doc.MetaValues(titleMetaKeys...); len(titles) > 0 {
		title = strings.TrimSpace(titles[0])
	}
	if title == "" {
		title = doc.Title
	}

	if len(authors) == 0 || title == "" {
		if readable, ok := Readable(doc); ok {
			if len(authors) == 0 {
				authors = BylineAuthors(readable.Byline)
			}
			if title == "" {
				title = readable.Title
			}
		}
	}
	if len(authors) == 0 {
		return ArticleInfo{}, false
	}
	if title == "" {
		title = doc.URL
	}

	articleType := ""
	if types := doc.MetaValues(typeMetaKeys...); len(types) > 0 {
		articleType = strings.TrimSpace(types[0])
	}
	if !IsResearchArticle(articleType, title) {
		return ArticleInfo{}, false
	}

	date := ""
	if dates := doc.MetaValues(dateMetaKeys...); len(dates) > 0 {
		date = dates[0]
	}

	return ArticleInfo{
		Title:         title,
		URL:           doc.URL,
		Authors:       authors,
		ArticleType:   articleType,
		PublishedDate: date,
	}, true
}

// BylineAuthors splits a byline into names that look like people
func BylineAuthors(byline string) []string {
	byline = strings.TrimSpace(byline)
	if byline == "" {
		return nil
	}
	lower := strings.ToLower(byline)
	if strings.HasPrefix(lower, "by ") {
		byline = byline[3:]
	}
	byline = strings.ReplaceAll(byline, " and ", ",")
	byline = strings.ReplaceAll(byline, "&", ",")

	var authors []string
	for _, piece := range strings.FieldsFunc(byline, func(r rune) bool { return r == ',' || r == ';' }) {
		piece = strings.TrimSpace(piece)
		if LooksLikePersonName(piece) {
			authors = append(authors, piece)
		}
	}
	return authors
}
