// Package scheduler coordinates concurrent per-site crawl loops under a
// global article budget. The coordinator fans sites out under a
// semaphore, each loop reserves ingestion slots from the budget arbiter,
// and results are aggregated into a single run summary that is returned
// even when everything fails.
package scheduler

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/newsgrid/harvester/internal/budget"
	"github.com/newsgrid/harvester/internal/sources"
	"github.com/newsgrid/harvester/internal/strategy"
	"github.com/newsgrid/harvester/pkg/plugin"
)

// defaultConcurrentSites bounds simultaneous site loops when the caller
// passes zero. Documented upper bound is 10.
const defaultConcurrentSites = 3

// ProfileOverride routes a domain through an external profile engine
// instead of the strategy selector.
type ProfileOverride struct {
	Engine   string         `json:"engine"`
	Settings map[string]any `json:"settings,omitempty"`
}

// selectsEngine reports whether the override names a real profile
// engine. A generic or empty engine is not an override; those sites
// still go through the selector and the batched path.
func (o *ProfileOverride) selectsEngine() bool {
	return o != nil && o.Engine != "" && o.Engine != strategy.Generic
}

// RunRequest is one coordinator invocation.
type RunRequest struct {
	Domains     []string
	PerSiteCap  int
	Concurrency int
	// GlobalTarget caps total new ingestions across all sites. Nil means
	// unbounded; zero means no ingestion at all.
	GlobalTarget     *int
	ProfileOverrides map[string]ProfileOverride
}

// Coordinator wires the per-site loops to their shared dependencies.
type Coordinator struct {
	crawler  plugin.SiteCrawler
	profile  plugin.ProfileEngine
	ingestor plugin.Ingestor
	hitl     plugin.CandidateForwarder
	store    plugin.SourceStore
	selector *strategy.Selector

	maxSiteBatches   int
	paywallThreshold int
	logger           zerolog.Logger
}

// Options for a Coordinator.
type Options struct {
	MaxSiteBatches       int
	PaywallSkipThreshold int
}

// New builds a Coordinator. profile and hitl may be nil.
func New(crawler plugin.SiteCrawler, profile plugin.ProfileEngine, ingestor plugin.Ingestor,
	hitl plugin.CandidateForwarder, store plugin.SourceStore, selector *strategy.Selector,
	opts Options, logger zerolog.Logger) *Coordinator {
	if opts.MaxSiteBatches < 1 {
		opts.MaxSiteBatches = 4
	}
	if opts.PaywallSkipThreshold < 1 {
		opts.PaywallSkipThreshold = 3
	}
	return &Coordinator{
		crawler:          crawler,
		profile:          profile,
		ingestor:         ingestor,
		hitl:             hitl,
		store:            store,
		selector:         selector,
		maxSiteBatches:   opts.MaxSiteBatches,
		paywallThreshold: opts.PaywallSkipThreshold,
		logger:           logger.With().Str("module", "coordinator").Logger(),
	}
}

// Run crawls every requested domain and returns the aggregated summary.
// Individual site failures never propagate; they surface as error counts
// and exhaustion reasons.
func (c *Coordinator) Run(ctx context.Context, req RunRequest) *plugin.RunSummary {
	start := time.Now()
	summary := newSummary()

	if req.GlobalTarget != nil {
		summary.GlobalTargetSet = true
		summary.GlobalTargetTotal = *req.GlobalTarget
	}

	sites := c.resolveSites(ctx, req.Domains)

	// A zero global target means no ingestion at all: report and return
	// before any site loop launches.
	if req.GlobalTarget != nil && *req.GlobalTarget <= 0 {
		summary.GlobalTargetReached = true
		for _, site := range sites {
			summary.SiteExhaustion[site.Domain] = plugin.ExhaustGlobalTargetReached
		}
		summary.Elapsed = time.Since(start)
		return summary
	}

	arbiter := budget.NewUnbounded()
	if req.GlobalTarget != nil {
		arbiter = budget.NewArbiter(*req.GlobalTarget)
	}

	overrides := normalizeOverrides(req.ProfileOverrides)

	concurrency := req.Concurrency
	if concurrency < 1 {
		concurrency = defaultConcurrentSites
	}

	var aggMu sync.Mutex
	var g errgroup.Group
	g.SetLimit(concurrency)

	for _, site := range sites {
		site := site
		g.Go(func() error {
			override := overrideFor(overrides, site)
			if !override.selectsEngine() {
				override = nil
			}
			loop := &siteLoop{
				site:             site,
				override:         override,
				crawler:          c.crawler,
				profile:          c.profile,
				ingestor:         c.ingestor,
				hitl:             c.hitl,
				store:            c.store,
				arbiter:          arbiter,
				perSiteCap:       req.PerSiteCap,
				maxBatches:       c.maxSiteBatches,
				paywallThreshold: c.paywallThreshold,
				logger:           c.logger,
			}
			if loop.override == nil && c.selector != nil {
				site.Strategy = c.selector.Select(ctx, site)
			}

			result := loop.run(ctx)

			aggMu.Lock()
			defer aggMu.Unlock()
			mergeResult(summary, result)
			return nil
		})
	}
	_ = g.Wait()

	summary.Elapsed = time.Since(start)
	if secs := summary.Elapsed.Seconds(); secs > 0 {
		summary.ArticlesPerSecond = float64(summary.TotalArticles) / secs
	}
	if req.GlobalTarget != nil {
		summary.GlobalTargetReached = summary.TotalArticles >= *req.GlobalTarget
	}
	summary.Adaptive = reduceAdaptive(summary.Articles)

	c.logger.Info().
		Int("sites", summary.SitesCrawled).
		Int("articles", summary.TotalArticles).
		Int("duplicates", summary.TotalDuplicates).
		Int("errors", summary.TotalErrors).
		Dur("elapsed", summary.Elapsed).
		Msg("run complete")
	return summary
}

// resolveSites maps each requested domain to a site config via the
// source store, synthesizing a minimal config for unknown domains.
// Unresolvable targets are dropped with a warning before launch.
func (c *Coordinator) resolveSites(ctx context.Context, domains []string) []*plugin.SiteConfig {
	var sites []*plugin.SiteConfig
	for _, domain := range domains {
		domain = strings.TrimSpace(domain)
		if domain == "" {
			continue
		}
		var site *plugin.SiteConfig
		if c.store != nil {
			if configured, err := c.store.SourcesByDomain(ctx, domain); err != nil {
				c.logger.Warn().Str("domain", domain).Err(err).Msg("source lookup failed")
			} else if len(configured) > 0 {
				// Copy the stored config: site loops write Strategy, and
				// the store hands the same pointers to every caller.
				copied := *configured[0]
				site = &copied
			}
		}
		if site == nil {
			site = sources.SiteFromTarget(domain)
		}
		if site.StartURL == "" || site.Domain == "" {
			c.logger.Warn().Str("target", domain).Msg("dropping unresolvable site")
			continue
		}
		sites = append(sites, site)
	}
	return sites
}

func newSummary() *plugin.RunSummary {
	return &plugin.RunSummary{
		Articles:               []*plugin.ArticleRecord{},
		SiteExhaustion:         make(map[string]plugin.ExhaustionReason),
		SiteArticleBreakdown:   make(map[string]int),
		SiteDuplicateBreakdown: make(map[string]int),
		SiteErrorBreakdown:     make(map[string]int),
		SitePaywallBreakdown:   make(map[string]int),
		IngestionDetails:       make(map[string][]plugin.IngestDetail),
	}
}

// mergeResult folds one site's published result into the summary.
// Breakdown maps only carry non-zero entries.
func mergeResult(summary *plugin.RunSummary, result *siteResult) {
	m := result.metrics
	summary.SitesCrawled++
	summary.TotalArticles += m.Ingested
	summary.TotalDuplicates += m.Duplicates
	summary.TotalErrors += m.Errors
	summary.TotalPaywalls += m.Paywalls
	summary.Articles = append(summary.Articles, result.articles...)
	summary.SiteExhaustion[m.Domain] = m.ExhaustionReason
	if m.Ingested > 0 {
		summary.SiteArticleBreakdown[m.Domain] = m.Ingested
	}
	if m.Duplicates > 0 {
		summary.SiteDuplicateBreakdown[m.Domain] = m.Duplicates
	}
	if m.Errors > 0 {
		summary.SiteErrorBreakdown[m.Domain] = m.Errors
	}
	if m.Paywalls > 0 {
		summary.SitePaywallBreakdown[m.Domain] = m.Paywalls
	}
	if len(result.details) > 0 {
		summary.IngestionDetails[m.Domain] = result.details
	}
}

// reduceAdaptive folds per-article extraction telemetry into the
// run-level adaptive summary. Nil when no articles were ingested.
func reduceAdaptive(articles []*plugin.ArticleRecord) *plugin.AdaptiveSummary {
	if len(articles) == 0 {
		return nil
	}
	adaptive := &plugin.AdaptiveSummary{ExtractorCounts: make(map[string]int)}
	var confidence, words float64
	for _, article := range articles {
		adaptive.ExtractorCounts[article.Extraction.Extractor]++
		confidence += article.Confidence
		words += float64(article.Extraction.WordCount)
		if article.NeedsReview {
			adaptive.NeedsReview++
		}
	}
	n := float64(len(articles))
	adaptive.AvgConfidence = confidence / n
	adaptive.AvgWordCount = words / n
	return adaptive
}

// normalizeOverrides keys overrides case-insensitively by domain and by
// source name.
func normalizeOverrides(in map[string]ProfileOverride) map[string]*ProfileOverride {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]*ProfileOverride, len(in))
	for key, override := range in {
		override := override
		out[strings.ToLower(strings.TrimSpace(key))] = &override
	}
	return out
}

func overrideFor(overrides map[string]*ProfileOverride, site *plugin.SiteConfig) *ProfileOverride {
	if overrides == nil {
		return nil
	}
	if o, ok := overrides[strings.ToLower(site.Domain)]; ok {
		return o
	}
	if o, ok := overrides[strings.ToLower(site.Name)]; ok {
		return o
	}
	return nil
}
