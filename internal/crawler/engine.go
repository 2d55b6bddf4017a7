package crawler

import (
	"context"

	"github.com/newsgrid/harvester/internal/strategy"
	"github.com/newsgrid/harvester/pkg/plugin"
)

// EngineDispatcher routes a site to the crawler matching its selected
// engine: ai_enhanced sites go through the browser-backed crawler when
// one is available, everything else through the HTTP-backed one.
type EngineDispatcher struct {
	standard *SiteCrawler
	enhanced *SiteCrawler
}

// NewEngineDispatcher builds a dispatcher. enhanced may be nil, in which
// case ai_enhanced sites fall back to the standard crawler.
func NewEngineDispatcher(standard, enhanced *SiteCrawler) *EngineDispatcher {
	return &EngineDispatcher{standard: standard, enhanced: enhanced}
}

// CrawlSite dispatches on the site's strategy tag.
func (d *EngineDispatcher) CrawlSite(ctx context.Context, site *plugin.SiteConfig, maxArticles int) ([]*plugin.ArticleRecord, error) {
	if site.Strategy == strategy.AIEnhanced && d.enhanced != nil {
		return d.enhanced.CrawlSite(ctx, site, maxArticles)
	}
	return d.standard.CrawlSite(ctx, site, maxArticles)
}
