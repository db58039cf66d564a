package adapters

import (
	"testing"

	"github.com/ppiankov/doaj-reviewer/internal/extract"
)

const homepage = "https://journal.example.com/"

func TestArticleLinkScore(t *testing.T) {
	tests := []struct {
		link string
		want int
	}{
		{"https://journal.example.com/article/view/12", 8},
		{"https://journal.example.com/doi/10.1234/abc", 3},
		{"https://journal.example.com/issue/3", 1},
		{"https://journal.example.com/about/editorial-policy", -6},
		{"https://journal.example.com/", 0},
	}
	for _, tt := range tests {
		if got := ArticleLinkScore(tt.link); got != tt.want {
			t.Errorf("ArticleLinkScore(%q) = %d, want %d", tt.link, got, tt.want)
		}
	}
}

func TestGenericAdapter_ArticleLinks(t *testing.T) {
	body := `<html><body>
		<a href="/article/view/2">Second</a>
		<a href="/doi/10.1234/abc">DOI</a>
		<a href="/article/view/1">First</a>
		<a href="/about">About</a>
		<a href="/issue/7">This issue</a>
		<a href="https://other.org/article/view/9">Elsewhere</a>
		<a href="/article/cover.png">Cover</a>
	</body></html>`
	doc := extract.ParseDocument("https://journal.example.com/issue/7", 200, "text/html", body)

	links := NewGenericAdapter().ArticleLinks(doc, homepage, 10)

	want := []string{
		"https://journal.example.com/article/view/1",
		"https://journal.example.com/article/view/2",
		"https://journal.example.com/doi/10.1234/abc",
	}
	if len(links) != len(want) {
		t.Fatalf("Expected %d links, got %d: %v", len(want), len(links), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("Link %d: expected %s, got %s", i, want[i], links[i])
		}
	}

	if capped := NewGenericAdapter().ArticleLinks(doc, homepage, 1); len(capped) != 1 {
		t.Errorf("Expected max to cap links, got %v", capped)
	}
}

func TestGenericAdapter_IssueLinks(t *testing.T) {
	body := `<html><body>
		<a href="/issue/9">Vol 3 No 2</a>
		<a href="/issue/8">Vol 3 No 1</a>
		<a href="/archives">Archives</a>
		<a href="/article/view/4">An article</a>
		<a href="/contact">Contact</a>
	</body></html>`
	doc := extract.ParseDocument("https://journal.example.com/archives", 200, "text/html", body)

	links := NewGenericAdapter().IssueLinks(doc, homepage, 0)

	if len(links) != 2 {
		t.Fatalf("Expected 2 issue links, got %v", links)
	}
	if links[0] != "https://journal.example.com/issue/9" {
		t.Errorf("Expected page order to be kept, got %v", links)
	}
}

func TestOJSAdapter(t *testing.T) {
	body := `<html><head><meta name="generator" content="Open Journal Systems 3.3.0.8"></head><body>
		<div class="obj_article_summary">
			<h3 class="title"><a href="/index.php/jt/article/view/101">Soil Moisture</a></h3>
			<a class="obj_galley_link pdf" href="/index.php/jt/article/view/101/88">PDF</a>
		</div>
		<div class="obj_article_summary">
			<h3 class="title"><a href="/index.php/jt/article/view/102">Rainfall</a></h3>
		</div>
		<a href="/index.php/jt/about/editorialTeam">Editorial Team</a>
	</body></html>`
	doc := extract.ParseDocument("https://journal.example.com/index.php/jt/issue/view/12", 200, "text/html", body)

	registry := NewRegistry()
	adapter := registry.FindAdapter(doc)
	if adapter.Name() != "ojs" {
		t.Fatalf("Expected ojs adapter, got %s", adapter.Name())
	}

	links := adapter.ArticleLinks(doc, homepage, 40)
	want := []string{
		"https://journal.example.com/index.php/jt/article/view/101",
		"https://journal.example.com/index.php/jt/article/view/102",
	}
	if len(links) != len(want) {
		t.Fatalf("Expected %d links, got %v", len(want), links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("Link %d: expected %s, got %s", i, want[i], links[i])
		}
	}
}

func TestOJSAdapter_IssueLinksFromArchive(t *testing.T) {
	body := `<html><head><meta name="generator" content="Open Journal Systems 3.3.0.8"></head><body>
		<a href="/index.php/jt/issue/current">Current</a>
		<ul class="issues_archive">
			<li><div class="obj_issue_summary"><h2><a class="title" href="/index.php/jt/issue/view/12">Vol. 4 No. 2</a></h2></div></li>
			<li><div class="obj_issue_summary"><h2><a class="title" href="/index.php/jt/issue/view/11">Vol. 4 No. 1</a></h2></div></li>
		</ul>
	</body></html>`
	doc := extract.ParseDocument("https://journal.example.com/index.php/jt/issue/archive", 200, "text/html", body)

	links := NewOJSAdapter().IssueLinks(doc, homepage, 5)

	if len(links) != 2 {
		t.Fatalf("Expected 2 issue links, got %v", links)
	}
	if links[0] != "https://journal.example.com/index.php/jt/issue/view/12" {
		t.Errorf("Expected latest issue first, got %v", links)
	}
}

func TestRegistry_FallsBackToGeneric(t *testing.T) {
	doc := extract.ParseDocument("https://journal.example.com/", 200, "text/html", `<a href="/issue/1">Issue</a>`)
	if got := NewRegistry().FindAdapter(doc).Name(); got != "generic" {
		t.Errorf("Expected generic adapter, got %s", got)
	}
}
