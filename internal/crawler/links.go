package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxDiscoveredLinks caps link discovery per landing page.
const maxDiscoveredLinks = 50

// yearToken matches the dated path segments most publishers use for
// article permalinks.
var yearToken = regexp.MustCompile(`/20[12]\d(/|-|$)`)

// genericArticleFragments mark article-ish paths on unknown publishers.
var genericArticleFragments = []string{"/article/", "/story/", "/news/"}

// builtinSectionPrefixes cover major publishers whose article URLs live
// under known section paths instead of dated ones.
var builtinSectionPrefixes = map[string][]string{
	"bbc.com":         {"/news/", "/sport/", "/culture/"},
	"bbc.co.uk":       {"/news/", "/sport/"},
	"theguardian.com": {"/world/", "/us-news/", "/uk-news/", "/business/", "/technology/", "/environment/"},
	"reuters.com":     {"/world/", "/business/", "/markets/", "/technology/", "/legal/"},
	"apnews.com":      {"/article/"},
	"cnn.com":         {"/politics/", "/business/", "/world/", "/us/"},
	"nytimes.com":     {"/section/"},
}

// discoverArticleLinks parses anchors from a landing page, absolutises
// them, keeps same-registrable-domain targets, and applies article-URL
// heuristics. Order is preserved; duplicates are dropped; the result is
// capped at maxDiscoveredLinks.
func discoverArticleLinks(doc *goquery.Document, base *url.URL, domain string, sectionPrefixes map[string][]string) []string {
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if len(links) >= maxDiscoveredLinks {
			return
		}
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !sameRegistrableDomain(resolved.Hostname(), domain) {
			return
		}
		if !looksLikeArticle(resolved.Path, domain, sectionPrefixes) {
			return
		}

		resolved.Fragment = ""
		link := resolved.String()
		if seen[link] {
			return
		}
		seen[link] = true
		links = append(links, link)
	})
	return links
}

// sameRegistrableDomain allows exact host matches, www. prefixes, and
// subdomains of the target domain.
func sameRegistrableDomain(host, domain string) bool {
	h := strings.ToLower(strings.TrimPrefix(host, "www."))
	d := strings.ToLower(strings.TrimPrefix(domain, "www."))
	return h == d || strings.HasSuffix(h, "."+d)
}

// looksLikeArticle applies per-domain section prefixes for known major
// publishers and the generic dated-path / fragment rules otherwise.
func looksLikeArticle(path, domain string, sectionPrefixes map[string][]string) bool {
	d := strings.ToLower(strings.TrimPrefix(domain, "www."))
	prefixes := sectionPrefixes[d]
	if prefixes == nil {
		prefixes = builtinSectionPrefixes[d]
	}
	if len(prefixes) > 0 {
		for _, prefix := range prefixes {
			if strings.HasPrefix(path, prefix) && len(lastSegment(path)) > 5 {
				return true
			}
		}
	}

	if yearToken.MatchString(path) {
		return true
	}
	lower := strings.ToLower(path)
	for _, fragment := range genericArticleFragments {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

func lastSegment(path string) string {
	trimmed := strings.TrimRight(path, "/")
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}
