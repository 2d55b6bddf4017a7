package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/newsgrid/harvester/internal/budget"
	"github.com/newsgrid/harvester/internal/strategy"
	"github.com/newsgrid/harvester/pkg/plugin"
)

// siteResult is what a per-site loop publishes to the coordinator,
// exactly once, under the aggregation lock.
type siteResult struct {
	metrics  plugin.SiteMetrics
	articles []*plugin.ArticleRecord
	details  []plugin.IngestDetail
}

// siteLoop drives repeated batches against one site until the local
// budget, the global budget, duplicate saturation, or the batch limit
// triggers exhaustion. All state is loop-local until published.
type siteLoop struct {
	site     *plugin.SiteConfig
	override *ProfileOverride

	crawler  plugin.SiteCrawler
	profile  plugin.ProfileEngine
	ingestor plugin.Ingestor
	hitl     plugin.CandidateForwarder
	store    plugin.SourceStore
	arbiter  *budget.Arbiter

	perSiteCap       int
	maxBatches       int
	paywallThreshold int
	logger           zerolog.Logger

	// loop-local aggregates
	metrics   plugin.SiteMetrics
	articles  []*plugin.ArticleRecord
	details   []plugin.IngestDetail
	seenKeys  map[string]bool
	remaining int
	batches   int
}

// run executes the loop and returns the result for publication. Any
// panic inside the loop is caught once, counted as a site error, and
// partial work is preserved.
func (l *siteLoop) run(ctx context.Context) (result *siteResult) {
	l.metrics.Domain = l.site.Domain
	l.seenKeys = make(map[string]bool)
	l.remaining = l.perSiteCap

	defer func() {
		if r := recover(); r != nil {
			l.metrics.Errors++
			l.setReason(plugin.ExhaustError)
			l.addDetail(fmt.Sprintf("site loop panic: %v", r))
			l.logger.Error().Str("domain", l.site.Domain).Interface("panic", r).Msg("site loop recovered")
		}
		l.classifyExit(ctx)
		result = &siteResult{metrics: l.metrics, articles: l.articles, details: l.details}
	}()

	if l.override != nil && l.override.Engine != "" && l.override.Engine != strategy.Generic {
		l.runProfiled(ctx)
		return
	}
	l.runBatched(ctx)
	return
}

// runProfiled is the one-shot path through an external profile engine.
func (l *siteLoop) runProfiled(ctx context.Context) {
	l.site.Strategy = strategy.Profiled
	if l.profile == nil {
		l.metrics.Errors++
		l.setReason(plugin.ExhaustError)
		l.addDetail("profile engine not configured")
		return
	}

	batch, err := l.profile.FetchBatch(ctx, l.site, l.remaining)
	if err != nil {
		l.metrics.Errors++
		l.setReason(plugin.ExhaustError)
		l.addDetail("profile fetch: " + err.Error())
		return
	}
	l.metrics.Attempted += len(batch)

	fresh := l.dedup(batch)
	l.metrics.Candidates += len(fresh)
	ingestable, paywalled := splitPaywalled(fresh)
	l.metrics.Paywalls += len(paywalled)

	if len(ingestable) > 0 {
		granted := l.arbiter.Reserve(len(ingestable))
		if granted < len(ingestable) {
			ingestable = ingestable[:granted]
		}
		if granted > 0 {
			l.ingestSlice(ctx, ingestable, granted)
		}
	}

	if l.metrics.Ingested == 0 && l.metrics.Paywalls > 0 {
		l.setReason(plugin.ExhaustPaywallsOnly)
	} else {
		l.setReason(plugin.ExhaustProfileCompleted)
	}
}

// runBatched is the default repeated-batch path.
func (l *siteLoop) runBatched(ctx context.Context) {
	for l.remaining > 0 && l.batches < l.maxBatches && !l.arbiter.Exhausted() {
		if ctx.Err() != nil {
			l.cancelInFlight()
			return
		}

		requestCap := l.remaining
		if global, unbounded := l.arbiter.Snapshot(); !unbounded && global < requestCap {
			requestCap = global
		}
		if requestCap < 1 {
			requestCap = 1
		}

		batch, err := l.crawler.CrawlSite(ctx, l.site, requestCap)
		l.batches++
		l.metrics.Attempted += len(batch)
		if err != nil {
			l.metrics.Errors++
			l.setReason(plugin.ExhaustError)
			l.addDetail("crawl batch: " + err.Error())
			return
		}
		if len(batch) == 0 {
			l.setReason(plugin.ExhaustNoCandidates)
			return
		}

		fresh := l.dedup(batch)
		l.metrics.Candidates += len(fresh)

		ingestable, paywalled := splitPaywalled(fresh)
		l.metrics.Paywalls += len(paywalled)
		if len(ingestable) == 0 {
			if len(paywalled) > 0 && l.remaining > 0 {
				continue
			}
			l.setReason(plugin.ExhaustNoNewCandidates)
			return
		}

		if len(ingestable) > l.remaining {
			ingestable = ingestable[:l.remaining]
		}

		granted := l.arbiter.Reserve(len(ingestable))
		if granted == 0 {
			// Other workers may restore budget; the batch cap still
			// bounds the loop.
			continue
		}
		if ctx.Err() != nil {
			l.arbiter.Restore(granted)
			l.cancelInFlight()
			return
		}
		if granted < len(ingestable) {
			ingestable = ingestable[:granted]
		}

		ingested := l.ingestSlice(ctx, ingestable, granted)
		if ingested == 0 {
			l.setReason(plugin.ExhaustIngestionStalled)
			return
		}
		if l.arbiter.Exhausted() {
			l.setReason(plugin.ExhaustGlobalTargetReached)
			return
		}
	}
}

// ingestSlice forwards the slice to HITL, ingests it, restores any
// reservation shortfall, and folds the outcome into the loop aggregates.
// Returns the number of newly ingested articles.
func (l *siteLoop) ingestSlice(ctx context.Context, slice []*plugin.ArticleRecord, granted int) int {
	if l.hitl != nil {
		for _, article := range slice {
			go l.hitl.Forward(context.WithoutCancel(ctx), article)
		}
	}

	outcome := l.ingestor.IngestBatch(ctx, slice)
	if outcome.NewArticles < granted {
		l.arbiter.Restore(granted - outcome.NewArticles)
	}

	l.metrics.Ingested += outcome.NewArticles
	l.metrics.Duplicates += outcome.Duplicates
	l.metrics.Errors += outcome.Errors
	l.details = append(l.details, outcome.Details...)
	for _, article := range slice {
		if article.IngestionStatus == plugin.IngestionNew {
			l.articles = append(l.articles, article)
		}
	}
	l.remaining -= outcome.NewArticles
	return outcome.NewArticles
}

// cancelInFlight marks a cancelled batch as errored and records the
// terminal reason. Reservations are restored by the caller before this
// runs.
func (l *siteLoop) cancelInFlight() {
	l.metrics.Errors++
	l.setReason(plugin.ExhaustError)
	l.addDetail("run cancelled")
}

// classifyExit resolves the terminal exhaustion reason and triggers
// paywall escalation when a site produced nothing but paywalled pages.
func (l *siteLoop) classifyExit(ctx context.Context) {
	if l.metrics.ExhaustionReason == plugin.ExhaustNone {
		switch {
		case l.remaining <= 0:
			l.metrics.ExhaustionReason = plugin.ExhaustLimitReached
		case l.batches >= l.maxBatches:
			l.metrics.ExhaustionReason = plugin.ExhaustMaxBatchesReached
		case l.arbiter.Exhausted():
			l.metrics.ExhaustionReason = plugin.ExhaustGlobalTargetReached
		}
	}
	if l.metrics.Ingested == 0 && l.metrics.Paywalls > 0 &&
		l.metrics.ExhaustionReason != plugin.ExhaustError {
		l.metrics.ExhaustionReason = plugin.ExhaustPaywallsOnly
	}

	if l.metrics.Paywalls > 0 && l.metrics.Ingested == 0 && l.store != nil {
		changed, err := l.store.RecordPaywallDetection(context.WithoutCancel(ctx), plugin.PaywallDetectionRecord{
			SourceID:  l.site.SourceID,
			Domain:    l.site.Domain,
			SkipCount: l.metrics.Paywalls,
			Threshold: l.paywallThreshold,
			Type:      "hard_paywall",
		})
		if err != nil {
			l.logger.Warn().Str("domain", l.site.Domain).Err(err).Msg("paywall detection record failed")
		} else if changed {
			l.logger.Info().Str("domain", l.site.Domain).Msg("source marked paywalled")
		}
	}
}

// dedup filters out articles whose key was already seen this run. The
// key prefers the URL hash, then the normalized URL, then the raw URL.
func (l *siteLoop) dedup(batch []*plugin.ArticleRecord) []*plugin.ArticleRecord {
	var fresh []*plugin.ArticleRecord
	for _, article := range batch {
		key := article.URLHash
		if key == "" {
			key = article.NormalizedURL
		}
		if key == "" {
			key = article.URL
		}
		if key == "" || l.seenKeys[key] {
			continue
		}
		l.seenKeys[key] = true
		fresh = append(fresh, article)
	}
	return fresh
}

func (l *siteLoop) setReason(reason plugin.ExhaustionReason) {
	if l.metrics.ExhaustionReason == plugin.ExhaustNone {
		l.metrics.ExhaustionReason = reason
	}
}

func (l *siteLoop) addDetail(detail string) {
	l.metrics.Details = append(l.metrics.Details, detail)
}

// splitPaywalled partitions a batch into ingestable and paywall-skip
// records.
func splitPaywalled(batch []*plugin.ArticleRecord) (ingestable, paywalled []*plugin.ArticleRecord) {
	for _, article := range batch {
		if article.SkipIngest {
			paywalled = append(paywalled, article)
		} else {
			ingestable = append(ingestable, article)
		}
	}
	return ingestable, paywalled
}
