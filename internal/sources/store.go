// Package sources provides the read-only source catalogue the scheduler
// consults, backed by static configuration so the binary runs without an
// external sources database.
package sources

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/newsgrid/harvester/internal/config"
	"github.com/newsgrid/harvester/pkg/plugin"
)

// StaticStore implements plugin.SourceStore over configured source
// definitions.
type StaticStore struct {
	byDomain map[string][]*plugin.SiteConfig

	mu      sync.Mutex
	history map[int64][]plugin.PerformanceRecord

	logger zerolog.Logger
}

// NewStaticStore indexes the configured sources by domain.
func NewStaticStore(defs []config.SourceDef, logger zerolog.Logger) *StaticStore {
	s := &StaticStore{
		byDomain: make(map[string][]*plugin.SiteConfig),
		history:  make(map[int64][]plugin.PerformanceRecord),
		logger:   logger.With().Str("module", "sources").Logger(),
	}
	for _, def := range defs {
		site := SiteFromDef(def)
		if site.Domain == "" {
			continue
		}
		s.byDomain[site.Domain] = append(s.byDomain[site.Domain], site)
	}
	return s
}

// SiteFromDef normalizes one configured source into a SiteConfig:
// a bare host gains an https start URL, and a bare URL derives its
// domain from the host.
func SiteFromDef(def config.SourceDef) *plugin.SiteConfig {
	site := &plugin.SiteConfig{
		SourceID: def.ID,
		Name:     def.Name,
		Domain:   strings.ToLower(strings.TrimSpace(def.Domain)),
		StartURL: strings.TrimSpace(def.URL),
		Metadata: def.Metadata,
		Strategy: def.Strategy,
	}
	normalizeSite(site)
	return site
}

// SiteFromTarget synthesizes a minimal config from a bare domain or URL.
func SiteFromTarget(target string) *plugin.SiteConfig {
	target = strings.TrimSpace(target)
	site := &plugin.SiteConfig{}
	if strings.Contains(target, "://") {
		site.StartURL = target
	} else {
		site.Domain = strings.ToLower(target)
	}
	normalizeSite(site)
	if site.Name == "" {
		site.Name = site.Domain
	}
	return site
}

func normalizeSite(site *plugin.SiteConfig) {
	if site.Domain != "" && site.StartURL == "" {
		site.StartURL = "https://" + site.Domain
	}
	if site.StartURL != "" && site.Domain == "" {
		if u, err := url.Parse(site.StartURL); err == nil {
			site.Domain = strings.ToLower(u.Hostname())
		}
	}
}

// SourcesByDomain returns the configured sources for a domain. Unknown
// domains return an empty list, not an error; callers synthesize a
// minimal config.
func (s *StaticStore) SourcesByDomain(_ context.Context, domain string) ([]*plugin.SiteConfig, error) {
	return s.byDomain[strings.ToLower(strings.TrimSpace(domain))], nil
}

// PerformanceHistory returns up to limit recorded measurements for a
// source, most recent first.
func (s *StaticStore) PerformanceHistory(_ context.Context, sourceID int64, limit int) ([]plugin.PerformanceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.history[sourceID]
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	out := make([]plugin.PerformanceRecord, len(records))
	copy(out, records)
	return out, nil
}

// AddPerformanceRecord prepends a measurement for a source. Used by runs
// that feed back their own telemetry and by tests.
func (s *StaticStore) AddPerformanceRecord(sourceID int64, rec plugin.PerformanceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[sourceID] = append([]plugin.PerformanceRecord{rec}, s.history[sourceID]...)
}

// RecordPaywallDetection logs the paywall state change request. The
// static store has no persistence; it reports a status change when the
// skip count crosses the threshold so the scheduler's escalation
// contract still holds.
func (s *StaticStore) RecordPaywallDetection(_ context.Context, rec plugin.PaywallDetectionRecord) (bool, error) {
	changed := rec.SkipCount >= rec.Threshold
	s.logger.Info().
		Str("domain", rec.Domain).
		Int64("source_id", rec.SourceID).
		Int("skip_count", rec.SkipCount).
		Int("threshold", rec.Threshold).
		Bool("status_changed", changed).
		Msg("paywall detection recorded")
	return changed, nil
}
