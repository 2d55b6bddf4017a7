package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// articleBodySelectors are tried in order by the primary tier. Publishers
// that mark up their body with schema.org or a conventional container get
// clean paragraph extraction.
var articleBodySelectors = []string{
	`[itemprop="articleBody"]`,
	"article",
	"div.article-body",
	"div.article-content",
	"div.story-body",
	"div.post-content",
	"main",
}

// extractPrimary pulls paragraph text from the first matching article
// container.
func extractPrimary(doc *goquery.Document) string {
	for _, sel := range articleBodySelectors {
		container := doc.Find(sel).First()
		if container.Length() == 0 {
			continue
		}
		if text := paragraphText(container); text != "" {
			return text
		}
	}
	return ""
}

// extractReadability scores candidate containers by paragraph text mass
// minus link-text mass and extracts from the best one. A rough port of
// the classic readability heuristic, enough for fallback duty.
func extractReadability(doc *goquery.Document) string {
	var best *goquery.Selection
	bestScore := 0

	doc.Find("article, main, section, div").Each(func(_ int, s *goquery.Selection) {
		textLen := 0
		s.ChildrenFiltered("p").Each(func(_ int, p *goquery.Selection) {
			textLen += len(strings.TrimSpace(p.Text()))
		})
		if textLen == 0 {
			// Containers one level up from the paragraphs.
			s.Find("p").Each(func(_ int, p *goquery.Selection) {
				if p.Parent().IsSelection(s) {
					textLen += len(strings.TrimSpace(p.Text()))
				}
			})
		}
		linkLen := 0
		s.ChildrenFiltered("p").Find("a").Each(func(_ int, a *goquery.Selection) {
			linkLen += len(strings.TrimSpace(a.Text()))
		})
		score := textLen - 2*linkLen
		if score > bestScore {
			bestScore = score
			best = s
		}
	})

	if best == nil {
		// No scored container; fall back to every paragraph on the page.
		return paragraphText(doc.Selection)
	}
	return paragraphText(best)
}

// extractBoilerplate strips chrome elements and returns the remaining
// body text.
func extractBoilerplate(doc *goquery.Document) string {
	clone := doc.Selection.Clone()
	clone.Find("script, style, noscript, nav, header, footer, aside, form, iframe").Remove()
	return collapseWhitespace(clone.Find("body").Text())
}

var (
	reScript   = regexp.MustCompile(`(?is)<script.*?</script>`)
	reStyle    = regexp.MustCompile(`(?is)<style.*?</style>`)
	reComment  = regexp.MustCompile(`(?s)<!--.*?-->`)
	reTag      = regexp.MustCompile(`(?s)<[^>]*>`)
	reSpaceRun = regexp.MustCompile(`\s+`)
)

// sanitizeHTML is the last-resort tier: strip scripts, styles, comments
// and tags, then collapse whitespace.
func sanitizeHTML(html string) string {
	s := reScript.ReplaceAllString(html, " ")
	s = reStyle.ReplaceAllString(s, " ")
	s = reComment.ReplaceAllString(s, " ")
	s = reTag.ReplaceAllString(s, " ")
	return collapseWhitespace(s)
}

// paragraphText joins the trimmed text of every paragraph under sel.
func paragraphText(sel *goquery.Selection) string {
	var parts []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		if t := strings.TrimSpace(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(reSpaceRun.ReplaceAllString(s, " "))
}
