// Package strategy picks a crawl engine per site: a cached choice, a
// performance-history ranking, domain allow-lists, or the generic
// default. Strategies are tagged string constants dispatched on by the
// per-site loop; there is no strategy class hierarchy.
package strategy

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/newsgrid/harvester/pkg/plugin"
)

// Engine tags.
const (
	UltraFast  = "ultra_fast"
	AIEnhanced = "ai_enhanced"
	Generic    = "generic"
	Profiled   = "profiled"
)

// historyDepth is how many performance records the ranking considers.
const historyDepth = 5

// minViableRate is the articles/sec floor below which history is ignored.
const minViableRate = 0.1

// Selector chooses an engine per site, caching decisions for the
// lifetime of the process.
type Selector struct {
	store plugin.SourceStore

	fastTier    []string
	complexTier []string

	mu    sync.Mutex
	cache map[string]string

	logger zerolog.Logger
}

// New builds a Selector. fastTier and complexTier are domain substrings
// routing to ultra_fast and ai_enhanced respectively.
func New(store plugin.SourceStore, fastTier, complexTier []string, logger zerolog.Logger) *Selector {
	return &Selector{
		store:       store,
		fastTier:    lowerAll(fastTier),
		complexTier: lowerAll(complexTier),
		cache:       make(map[string]string),
		logger:      logger.With().Str("module", "strategy").Logger(),
	}
}

// Select returns the engine tag for the site.
func (s *Selector) Select(ctx context.Context, site *plugin.SiteConfig) string {
	key := fmt.Sprintf("%s|%d", strings.ToLower(site.Domain), site.SourceID)

	s.mu.Lock()
	if cached, ok := s.cache[key]; ok {
		s.mu.Unlock()
		return cached
	}
	s.mu.Unlock()

	choice := s.fromHistory(ctx, site)
	if choice == "" {
		choice = s.fromAllowLists(site.Domain)
	}
	if choice == "" {
		choice = Generic
	}

	s.mu.Lock()
	s.cache[key] = choice
	s.mu.Unlock()
	s.logger.Debug().Str("domain", site.Domain).Str("strategy", choice).Msg("strategy selected")
	return choice
}

// fromHistory ranks recent performance records by mean articles/sec per
// strategy and returns the winner when it clears the viability floor.
func (s *Selector) fromHistory(ctx context.Context, site *plugin.SiteConfig) string {
	if s.store == nil || site.SourceID == 0 {
		return ""
	}
	records, err := s.store.PerformanceHistory(ctx, site.SourceID, historyDepth)
	if err != nil {
		s.logger.Warn().Str("domain", site.Domain).Err(err).Msg("performance history unavailable")
		return ""
	}
	if len(records) == 0 {
		return ""
	}

	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range records {
		if r.StrategyUsed == "" {
			continue
		}
		sums[r.StrategyUsed] += r.ArticlesPerSecond
		counts[r.StrategyUsed]++
	}

	best, bestMean := "", 0.0
	for tag, sum := range sums {
		mean := sum / float64(counts[tag])
		if mean > bestMean {
			best, bestMean = tag, mean
		}
	}
	if bestMean > minViableRate {
		return best
	}
	return ""
}

func (s *Selector) fromAllowLists(domain string) string {
	d := strings.ToLower(domain)
	for _, sub := range s.fastTier {
		if strings.Contains(d, sub) {
			return UltraFast
		}
	}
	for _, sub := range s.complexTier {
		if strings.Contains(d, sub) {
			return AIEnhanced
		}
	}
	return ""
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
