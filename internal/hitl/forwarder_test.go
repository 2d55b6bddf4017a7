package hitl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/newsgrid/harvester/pkg/plugin"
)

func testArticle() *plugin.ArticleRecord {
	return &plugin.ArticleRecord{
		URL:        "https://example.com/story",
		SourceID:   42,
		Title:      "A Story",
		Content:    "Body text.",
		RawHTMLRef: "/snapshots/abc.html",
		Confidence: 0.75,
		Timestamp:  "2026-08-24T10:00:00Z",
		Extraction: plugin.ExtractionMeta{WordCount: 250, BoilerplateRatio: 0.4},
	}
}

func TestNewDisabled(t *testing.T) {
	if f := New(Config{Enabled: false, BaseURL: "http://x"}, zerolog.Nop()); f != nil {
		t.Error("disabled config should yield nil forwarder")
	}
	if f := New(Config{Enabled: true}, zerolog.Nop()); f != nil {
		t.Error("missing base URL should yield nil forwarder")
	}
}

func TestForwardSubmitsCandidate(t *testing.T) {
	var got CandidateEvent
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/candidates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		atomic.AddInt32(&calls, 1)
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	f := New(Config{Enabled: true, BaseURL: srv.URL, JobID: "job-1"}, zerolog.Nop())
	f.Forward(context.Background(), testArticle())

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if got.URL != "https://example.com/story" || got.CrawlerJobID != "job-1" {
		t.Errorf("payload mismatch: %+v", got)
	}
	if got.SiteID != 42 {
		t.Errorf("site_id = %d, want 42", got.SiteID)
	}
	if got.CrawlerTS != "2026-08-24T10:00:00Z" {
		t.Errorf("crawler_ts = %q", got.CrawlerTS)
	}
	if _, ok := got.Features["confidence"]; !ok {
		t.Errorf("features missing confidence: %v", got.Features)
	}
	if _, ok := got.Features["word_count"]; !ok {
		t.Errorf("features missing word_count: %v", got.Features)
	}
}

func TestForwardFailureStreakSuspends(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(Config{
		Enabled:        true,
		BaseURL:        srv.URL,
		FailureBackoff: time.Hour,
	}, zerolog.Nop())

	for i := 0; i < 5; i++ {
		f.Forward(context.Background(), testArticle())
	}

	// The fourth and fifth submissions hit the suspension, not the wire.
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("server calls = %d, want 3 before suspension", n)
	}
}

func TestForwardSuccessResetsStreak(t *testing.T) {
	var fail atomic.Bool
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/candidates" {
			w.WriteHeader(http.StatusOK)
			return
		}
		atomic.AddInt32(&calls, 1)
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(Config{
		Enabled:        true,
		BaseURL:        srv.URL,
		FailureBackoff: time.Hour,
		StatsInterval:  time.Hour,
	}, zerolog.Nop())

	fail.Store(true)
	f.Forward(context.Background(), testArticle())
	f.Forward(context.Background(), testArticle())

	fail.Store(false)
	f.Forward(context.Background(), testArticle())

	// Two earlier failures were wiped by the success; a fresh streak has
	// to reach the limit again before anything is suspended.
	fail.Store(true)
	f.Forward(context.Background(), testArticle())
	f.Forward(context.Background(), testArticle())
	f.Forward(context.Background(), testArticle())
	f.Forward(context.Background(), testArticle())

	if n := atomic.LoadInt32(&calls); n != 6 {
		t.Errorf("server calls = %d, want 6", n)
	}
}

func TestForwardNilReceiver(t *testing.T) {
	var f *Forwarder
	f.Forward(context.Background(), testArticle())
}
