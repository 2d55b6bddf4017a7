// Package crawler harvests article records from a single publisher site:
// landing-page fetch, article-link discovery, and bounded parallel
// article fetches composed with the optional defensive capabilities.
package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/newsgrid/harvester/internal/extractor"
	"github.com/newsgrid/harvester/internal/fetcher"
	"github.com/newsgrid/harvester/internal/urlnorm"
	"github.com/newsgrid/harvester/pkg/plugin"
)

// maxContentChars truncates article content before it leaves the crawler.
const maxContentChars = 10000

// CookieSetter is implemented by fetchers that can persist session
// cookies between fetches on the same site.
type CookieSetter interface {
	SetCookies(host string, cookies []*http.Cookie)
}

// Config for a SiteCrawler.
type Config struct {
	// FetchParallelism bounds concurrent article fetches per site.
	FetchParallelism int
	// ArticlesPerSecond paces article fetches per site. Zero disables
	// pacing.
	ArticlesPerSecond float64
	NormalizationMode urlnorm.Mode
	HashAlgo          string
	// SectionPrefixes overrides the built-in per-domain article path
	// prefixes.
	SectionPrefixes map[string][]string
}

// SiteCrawler fetches one site's landing page, discovers article links,
// and builds article records. Capabilities are optional and read-only;
// the crawler branches only on presence.
type SiteCrawler struct {
	fetch     plugin.Fetcher
	extractor *extractor.Extractor
	modal     plugin.ModalHandler
	paywall   plugin.PaywallDetector
	cfg       Config
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

// New builds a SiteCrawler over the given fetcher and extractor.
func New(f plugin.Fetcher, ex *extractor.Extractor, modal plugin.ModalHandler, paywall plugin.PaywallDetector, cfg Config, logger zerolog.Logger) *SiteCrawler {
	if cfg.FetchParallelism <= 0 {
		cfg.FetchParallelism = 3
	}
	var limiter *rate.Limiter
	if cfg.ArticlesPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ArticlesPerSecond), 1)
	}
	return &SiteCrawler{
		fetch:     f,
		extractor: ex,
		modal:     modal,
		paywall:   paywall,
		cfg:       cfg,
		limiter:   limiter,
		logger:    logger.With().Str("module", "site_crawler").Logger(),
	}
}

// CrawlSite returns up to maxArticles article records for the site.
// Paywall-skip candidates are included with SkipIngest set so the caller
// can bucket them; articles with empty extracted text are dropped.
func (c *SiteCrawler) CrawlSite(ctx context.Context, site *plugin.SiteConfig, maxArticles int) ([]*plugin.ArticleRecord, error) {
	target := strings.TrimSpace(site.StartURL)
	if target == "" {
		return nil, nil
	}
	if maxArticles <= 0 {
		return nil, nil
	}

	landing, err := fetcher.FetchWithRetry(ctx, c.fetch, target)
	if err != nil {
		return nil, fmt.Errorf("landing fetch %s: %w", target, err)
	}

	html := landing.HTML
	if c.modal != nil {
		res := c.modal.Process(html)
		html = res.CleanedHTML
		c.applyCookies(landing.FinalURL, res.AppliedCookies)
		if len(res.ModalsDetected) > 0 {
			c.logger.Debug().Str("domain", site.Domain).Strs("modals", res.ModalsDetected).Msg("dismissed overlays on landing page")
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse landing page %s: %w", target, err)
	}
	base, err := url.Parse(landing.FinalURL)
	if err != nil {
		base, _ = url.Parse(target)
	}

	links := discoverArticleLinks(doc, base, site.Domain, c.cfg.SectionPrefixes)
	c.logger.Debug().Str("domain", site.Domain).Int("links", len(links)).Msg("discovered article links")
	if len(links) == 0 {
		return nil, nil
	}

	// Parallel article fetch under the per-site semaphore. Results are
	// slotted by index so output order matches discovery order.
	slots := make([]*plugin.ArticleRecord, len(links))
	sem := make(chan struct{}, c.cfg.FetchParallelism)
	var wg sync.WaitGroup
	for i, link := range links {
		if err := ctx.Err(); err != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, link string) {
			defer wg.Done()
			defer func() { <-sem }()
			slots[i] = c.fetchArticle(ctx, site, link)
		}(i, link)
	}
	wg.Wait()

	var articles []*plugin.ArticleRecord
	for _, a := range slots {
		if a == nil {
			continue
		}
		articles = append(articles, a)
		if len(articles) >= maxArticles {
			break
		}
	}
	return articles, ctx.Err()
}

// fetchArticle retrieves and builds one article record, or nil when the
// page yields nothing usable.
func (c *SiteCrawler) fetchArticle(ctx context.Context, site *plugin.SiteConfig, link string) *plugin.ArticleRecord {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil
		}
	}

	page, err := fetcher.FetchWithRetry(ctx, c.fetch, link)
	if err != nil {
		c.logger.Warn().Str("url", link).Err(err).Msg("article fetch failed")
		return nil
	}

	html := page.HTML
	var modalRes *plugin.ModalResult
	if c.modal != nil {
		modalRes = c.modal.Process(html)
		html = modalRes.CleanedHTML
		c.applyCookies(page.FinalURL, modalRes.AppliedCookies)
	}

	article := c.buildArticle(site, link, html)
	if article == nil {
		return nil
	}
	if modalRes != nil && len(modalRes.ModalsDetected) > 0 {
		article.Extraction.ModalHandler = modalRes
	}

	if c.paywall != nil {
		verdict := c.paywall.Analyze(link, html, article.Content)
		article.Extraction.PaywallDetection = verdict
		if verdict.ShouldSkip {
			article.SkipIngest = true
			article.Paywall = true
			article.IngestionStatus = plugin.IngestionPaywallSkipped
			c.logger.Debug().Str("url", link).Float64("confidence", verdict.Confidence).Msg("paywall skip")
		} else if verdict.IsPaywall {
			article.Paywall = true
		}
	}
	return article
}

// buildArticle composes an article record from extracted content.
// Articles with no text are discarded, not counted as errors.
func (c *SiteCrawler) buildArticle(site *plugin.SiteConfig, pageURL, html string) *plugin.ArticleRecord {
	out := c.extractor.Extract(html, pageURL)
	if out.Text == "" {
		return nil
	}

	canonical := out.CanonicalURL
	if canonical == "" {
		canonical = pageURL
	}
	normalized := urlnorm.Normalize(pageURL, out.CanonicalURL, c.cfg.NormalizationMode)
	hash, err := urlnorm.Hash(normalized, c.cfg.HashAlgo)
	if err != nil {
		c.logger.Error().Str("url", pageURL).Err(err).Msg("url hash failed")
		return nil
	}

	content := truncateRunes(out.Text, maxContentChars)
	confidence := 0.75
	if out.NeedsReview {
		confidence = 0.35
	}

	return &plugin.ArticleRecord{
		URL:           pageURL,
		Canonical:     canonical,
		NormalizedURL: normalized,
		URLHash:       hash,

		Title:         out.Title,
		Content:       content,
		Domain:        site.Domain,
		SourceID:      site.SourceID,
		SourceName:    site.Name,
		PublisherMeta: site.Metadata,

		ExtractedMetadata:  out.Metadata,
		StructuredMetadata: out.StructuredMetadata,
		Language:           out.Language,
		Authors:            out.Authors,
		Section:            out.Section,
		Tags:               out.Tags,
		PublicationDate:    out.PublicationDate,

		Confidence:    confidence,
		NeedsReview:   out.NeedsReview,
		ReviewReasons: out.ReviewReasons,

		Extraction: plugin.ExtractionMeta{
			Strategy:           site.Strategy,
			Extractor:          out.ExtractorUsed,
			FallbacksAttempted: out.FallbacksAttempted,
			WordCount:          out.WordCount,
			BoilerplateRatio:   out.BoilerplateRatio,
			NeedsReview:        out.NeedsReview,
			ReviewReasons:      out.ReviewReasons,
			RawHTMLPath:        out.RawHTMLPath,
		},
		RawHTMLRef: out.RawHTMLPath,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	}
}

// truncateRunes caps s at n runes. The cap counts characters, not
// bytes, so multibyte text is never cut mid-rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func (c *SiteCrawler) applyCookies(pageURL string, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	setter, ok := c.fetch.(CookieSetter)
	if !ok {
		return
	}
	if u, err := url.Parse(pageURL); err == nil {
		setter.SetCookies(u.Host, cookies)
	}
}
