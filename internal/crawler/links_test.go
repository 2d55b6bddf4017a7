package crawler

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return doc
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse url %q: %v", raw, err)
	}
	return u
}

func TestDiscoverArticleLinks(t *testing.T) {
	html := `<html><body>
		<a href="/2024/05/12/big-story">dated</a>
		<a href="https://example.com/article/another-one">absolute article</a>
		<a href="/news/markets-rally-today">news path</a>
		<a href="/about">nav</a>
		<a href="https://other.com/2024/05/12/offsite">offsite</a>
		<a href="#top">anchor</a>
		<a href="javascript:void(0)">js</a>
		<a href="mailto:tips@example.com">mail</a>
		<a href="/2024/05/12/big-story#comments">duplicate with fragment</a>
	</body></html>`

	doc := docFromHTML(t, html)
	base := mustParse(t, "https://example.com/")

	links := discoverArticleLinks(doc, base, "example.com", nil)
	want := []string{
		"https://example.com/2024/05/12/big-story",
		"https://example.com/article/another-one",
		"https://example.com/news/markets-rally-today",
	}
	if len(links) != len(want) {
		t.Fatalf("got %d links %v, want %d", len(links), links, len(want))
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("links[%d] = %q, want %q", i, links[i], want[i])
		}
	}
}

func TestDiscoverArticleLinksCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < maxDiscoveredLinks+20; i++ {
		fmt.Fprintf(&b, `<a href="/2024/01/01/story-%d">s</a>`, i)
	}
	b.WriteString("</body></html>")

	doc := docFromHTML(t, b.String())
	base := mustParse(t, "https://example.com/")

	links := discoverArticleLinks(doc, base, "example.com", nil)
	if len(links) != maxDiscoveredLinks {
		t.Errorf("got %d links, want cap %d", len(links), maxDiscoveredLinks)
	}
}

func TestDiscoverArticleLinksSubdomains(t *testing.T) {
	html := `<html><body>
		<a href="https://www.example.com/2024/01/01/www-story">www</a>
		<a href="https://live.example.com/2024/01/01/sub-story">subdomain</a>
		<a href="https://notexample.com/2024/01/01/spoof">spoof</a>
	</body></html>`

	doc := docFromHTML(t, html)
	base := mustParse(t, "https://example.com/")

	links := discoverArticleLinks(doc, base, "example.com", nil)
	if len(links) != 2 {
		t.Fatalf("got %v, want www and subdomain links only", links)
	}
}

func TestLooksLikeArticleSectionPrefixes(t *testing.T) {
	cases := []struct {
		path   string
		domain string
		want   bool
	}{
		{"/news/world-europe-68123456", "bbc.com", true},
		{"/sport/abc", "bbc.com", false},
		{"/weather/", "bbc.com", false},
		{"/world/2024/may/12/summit-ends", "theguardian.com", true},
		{"/article/election-results-abc123", "apnews.com", true},
		{"/2023/07/04/any-publisher-dated-path", "unknown.com", true},
		{"/tag/politics", "unknown.com", false},
		{"/story/breaking-now", "unknown.com", true},
	}
	for _, c := range cases {
		if got := looksLikeArticle(c.path, c.domain, nil); got != c.want {
			t.Errorf("looksLikeArticle(%q, %q) = %v, want %v", c.path, c.domain, got, c.want)
		}
	}
}

func TestLooksLikeArticleOverridePrefixes(t *testing.T) {
	overrides := map[string][]string{
		"example.com": {"/dispatch/"},
	}
	if !looksLikeArticle("/dispatch/long-feature-name", "example.com", overrides) {
		t.Error("override prefix should match")
	}
	if looksLikeArticle("/dispatch/x", "example.com", overrides) {
		t.Error("short final segment should not match")
	}
}

func TestSameRegistrableDomain(t *testing.T) {
	cases := []struct {
		host, domain string
		want         bool
	}{
		{"example.com", "example.com", true},
		{"www.example.com", "example.com", true},
		{"example.com", "www.example.com", true},
		{"edition.example.com", "example.com", true},
		{"notexample.com", "example.com", false},
		{"example.com.evil.net", "example.com", false},
	}
	for _, c := range cases {
		if got := sameRegistrableDomain(c.host, c.domain); got != c.want {
			t.Errorf("sameRegistrableDomain(%q, %q) = %v, want %v", c.host, c.domain, got, c.want)
		}
	}
}
