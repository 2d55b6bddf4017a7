// Package hitl submits candidate articles to the human-in-the-loop
// review service. Submission is best effort and fire-and-forget: a
// failing review service backs the forwarder off but never fails the
// crawl.
package hitl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/newsgrid/harvester/pkg/plugin"
)

// failureStreakLimit is the consecutive-failure count that triggers a
// temporary suspension.
const failureStreakLimit = 3

// CandidateEvent is the payload posted to /api/candidates.
type CandidateEvent struct {
	URL            string         `json:"url"`
	SiteID         int64          `json:"site_id,omitempty"`
	ExtractedTitle string         `json:"extracted_title,omitempty"`
	ExtractedText  string         `json:"extracted_text,omitempty"`
	RawHTMLRef     string         `json:"raw_html_ref,omitempty"`
	Features       map[string]any `json:"features,omitempty"`
	CrawlerTS      string         `json:"crawler_ts"`
	CrawlerJobID   string         `json:"crawler_job_id,omitempty"`
}

// statsResponse is the shape of GET /api/stats.
type statsResponse struct {
	Pending        int `json:"pending"`
	InReview       int `json:"in_review"`
	IngestQueueLen int `json:"ingest_queue_len"`
}

// Config for the forwarder.
type Config struct {
	BaseURL        string
	Enabled        bool
	StatsInterval  time.Duration
	FailureBackoff time.Duration
	JobID          string
}

// Forwarder posts candidates to the HITL service with a failure-streak
// circuit: three straight failures suspend submission for the backoff
// window.
type Forwarder struct {
	cfg    Config
	client *http.Client
	logger zerolog.Logger

	mu             sync.Mutex
	failureStreak  int
	suspendedUntil time.Time
	lastStatsProbe time.Time
}

// New builds a Forwarder. A nil return means HITL is disabled.
func New(cfg Config, logger zerolog.Logger) *Forwarder {
	if !cfg.Enabled || cfg.BaseURL == "" {
		return nil
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = 60 * time.Second
	}
	if cfg.FailureBackoff <= 0 {
		cfg.FailureBackoff = 180 * time.Second
	}
	return &Forwarder{
		cfg: cfg,
		client: &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
				ResponseHeaderTimeout: 6 * time.Second,
			},
			Timeout: 8 * time.Second,
		},
		logger: logger.With().Str("module", "hitl").Logger(),
	}
}

// Forward submits one candidate. Failures are absorbed: they advance the
// failure streak and, past the limit, suspend submission until the
// backoff window expires.
func (f *Forwarder) Forward(ctx context.Context, article *plugin.ArticleRecord) {
	if f == nil || article == nil {
		return
	}
	f.mu.Lock()
	if time.Now().Before(f.suspendedUntil) {
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	event := buildEvent(article, f.cfg.JobID)
	if err := f.post(ctx, event); err != nil {
		f.recordFailure(err)
		return
	}
	f.recordSuccess(ctx)
}

// buildEvent maps an article onto the candidate payload. Features are
// included only when non-empty, and only numeric feature values survive.
func buildEvent(article *plugin.ArticleRecord, jobID string) *CandidateEvent {
	event := &CandidateEvent{
		URL:            article.URL,
		SiteID:         article.SourceID,
		ExtractedTitle: article.Title,
		ExtractedText:  article.Content,
		RawHTMLRef:     article.RawHTMLRef,
		CrawlerTS:      article.Timestamp,
		CrawlerJobID:   jobID,
	}
	features := map[string]any{
		"confidence":        article.Confidence,
		"word_count":        article.Extraction.WordCount,
		"boilerplate_ratio": article.Extraction.BoilerplateRatio,
	}
	for k, v := range features {
		switch v.(type) {
		case int, int64, float64:
		default:
			delete(features, k)
		}
	}
	if len(features) > 0 {
		event.Features = features
	}
	return event
}

func (f *Forwarder) post(ctx context.Context, event *CandidateEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.cfg.BaseURL+"/api/candidates", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("hitl candidate rejected: status %d", resp.StatusCode)
	}
	return nil
}

func (f *Forwarder) recordFailure(err error) {
	f.mu.Lock()
	f.failureStreak++
	streak := f.failureStreak
	suspended := false
	if streak >= failureStreakLimit {
		f.suspendedUntil = time.Now().Add(f.cfg.FailureBackoff)
		suspended = true
	}
	f.mu.Unlock()

	log := f.logger.Warn().Int("streak", streak).Err(err)
	if suspended {
		log = log.Dur("backoff", f.cfg.FailureBackoff)
	}
	log.Msg("hitl submission failed")
}

func (f *Forwarder) recordSuccess(ctx context.Context) {
	f.mu.Lock()
	f.failureStreak = 0
	probe := time.Since(f.lastStatsProbe) >= f.cfg.StatsInterval
	if probe {
		f.lastStatsProbe = time.Now()
	}
	f.mu.Unlock()

	if probe {
		f.probeStats(ctx)
	}
}

// probeStats fetches queue depths after a successful submission, at most
// once per stats interval.
func (f *Forwarder) probeStats(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.BaseURL+"/api/stats", nil)
	if err != nil {
		return
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug().Err(err).Msg("hitl stats probe failed")
		return
	}
	defer resp.Body.Close()

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return
	}
	f.logger.Info().
		Int("pending", stats.Pending).
		Int("in_review", stats.InReview).
		Int("ingest_queue_len", stats.IngestQueueLen).
		Msg("hitl queue depth")
}
