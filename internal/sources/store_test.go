package sources

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/newsgrid/harvester/internal/config"
	"github.com/newsgrid/harvester/pkg/plugin"
)

func TestSiteFromDefBareDomain(t *testing.T) {
	site := SiteFromDef(config.SourceDef{ID: 7, Name: "Example", Domain: "Example.com"})

	if site.Domain != "example.com" {
		t.Errorf("domain = %q", site.Domain)
	}
	if site.StartURL != "https://example.com" {
		t.Errorf("start url = %q", site.StartURL)
	}
}

func TestSiteFromDefURLOnly(t *testing.T) {
	site := SiteFromDef(config.SourceDef{URL: "https://News.Example.org/home"})

	if site.Domain != "news.example.org" {
		t.Errorf("domain = %q", site.Domain)
	}
	if site.StartURL != "https://News.Example.org/home" {
		t.Errorf("start url = %q", site.StartURL)
	}
}

func TestSiteFromTarget(t *testing.T) {
	bare := SiteFromTarget("Example.com")
	if bare.Domain != "example.com" || bare.StartURL != "https://example.com" {
		t.Errorf("bare target = %+v", bare)
	}
	if bare.Name != "example.com" {
		t.Errorf("name = %q", bare.Name)
	}

	full := SiteFromTarget("https://example.com/section")
	if full.Domain != "example.com" || full.StartURL != "https://example.com/section" {
		t.Errorf("url target = %+v", full)
	}
}

func TestSourcesByDomain(t *testing.T) {
	store := NewStaticStore([]config.SourceDef{
		{ID: 1, Name: "One", Domain: "one.com"},
		{ID: 2, Name: "Two", Domain: "one.com", URL: "https://one.com/business"},
		{Name: "invalid"},
	}, zerolog.Nop())

	got, err := store.SourcesByDomain(context.Background(), " One.COM ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d sources, want 2", len(got))
	}

	none, _ := store.SourcesByDomain(context.Background(), "unknown.com")
	if len(none) != 0 {
		t.Errorf("unknown domain should yield empty list, got %v", none)
	}
}

func TestPerformanceHistoryOrderAndLimit(t *testing.T) {
	store := NewStaticStore(nil, zerolog.Nop())
	for _, rate := range []float64{0.5, 1.0, 1.5} {
		store.AddPerformanceRecord(9, plugin.PerformanceRecord{
			StrategyUsed:      "ultra_fast",
			ArticlesPerSecond: rate,
		})
	}

	records, err := store.PerformanceHistory(context.Background(), 9, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want limit 2", len(records))
	}
	// Most recent first.
	if records[0].ArticlesPerSecond != 1.5 {
		t.Errorf("first record = %+v, want the latest", records[0])
	}
}

func TestRecordPaywallDetection(t *testing.T) {
	store := NewStaticStore(nil, zerolog.Nop())

	changed, err := store.RecordPaywallDetection(context.Background(), plugin.PaywallDetectionRecord{
		Domain: "walled.com", SkipCount: 3, Threshold: 3,
	})
	if err != nil || !changed {
		t.Errorf("at-threshold detection: changed=%v err=%v, want true", changed, err)
	}

	changed, _ = store.RecordPaywallDetection(context.Background(), plugin.PaywallDetectionRecord{
		Domain: "walled.com", SkipCount: 1, Threshold: 3,
	})
	if changed {
		t.Error("below-threshold detection must not change status")
	}
}
