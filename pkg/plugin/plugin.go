// Package plugin defines the public interfaces and data types for the
// harvester. External tools can import this package to supply custom
// fetchers, defensive capabilities, or storage backends without forking
// the project.
package plugin

import (
	"context"
	"net/http"
	"time"
)

// ---------- Core Data Types ----------

// PageData represents a fully fetched web page.
type PageData struct {
	URL           string        `json:"url"`
	FinalURL      string        `json:"final_url"`
	StatusCode    int           `json:"status_code"`
	Headers       http.Header   `json:"-"`
	HTML          string        `json:"-"`
	ContentType   string        `json:"content_type"`
	FetchedAt     time.Time     `json:"fetched_at"`
	FetchDuration time.Duration `json:"fetch_duration"`
	FetcherUsed   string        `json:"fetcher_used"`
	ResponseSize  int           `json:"response_size"`
}

// SiteConfig identifies a publisher target. Immutable after construction.
type SiteConfig struct {
	SourceID int64             `json:"source_id,omitempty"`
	Name     string            `json:"name"`
	Domain   string            `json:"domain"`
	StartURL string            `json:"start_url"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Strategy string            `json:"crawling_strategy,omitempty"`
}

// IngestionStatus is the post-ingestion classification of an article.
type IngestionStatus string

const (
	IngestionUnset          IngestionStatus = ""
	IngestionNew            IngestionStatus = "new"
	IngestionDuplicate      IngestionStatus = "duplicate"
	IngestionError          IngestionStatus = "error"
	IngestionPaywallSkipped IngestionStatus = "paywall_skipped"
)

// ExtractionMeta captures how an article's content was obtained.
type ExtractionMeta struct {
	Strategy           string          `json:"strategy,omitempty"`
	Extractor          string          `json:"extractor"`
	FallbacksAttempted []string        `json:"fallbacks_attempted,omitempty"`
	WordCount          int             `json:"word_count"`
	BoilerplateRatio   float64         `json:"boilerplate_ratio"`
	NeedsReview        bool            `json:"needs_review"`
	ReviewReasons      []string        `json:"review_reasons,omitempty"`
	RawHTMLPath        string          `json:"raw_html_path,omitempty"`
	ModalHandler       *ModalResult    `json:"modal_handler,omitempty"`
	PaywallDetection   *PaywallVerdict `json:"paywall_detection,omitempty"`
}

// ArticleRecord is the unit of work flowing from the site crawler through
// HITL forwarding and ingestion. The crawler fills everything except
// IngestionStatus, which the ingestion client sets in place.
type ArticleRecord struct {
	URL           string `json:"url"`
	Canonical     string `json:"canonical"`
	NormalizedURL string `json:"normalized_url"`
	URLHash       string `json:"url_hash"`

	Title         string            `json:"title"`
	Content       string            `json:"content"`
	Domain        string            `json:"domain"`
	SourceID      int64             `json:"source_id,omitempty"`
	SourceName    string            `json:"source_name"`
	PublisherMeta map[string]string `json:"publisher_meta,omitempty"`

	ExtractedMetadata  map[string]string `json:"extracted_metadata,omitempty"`
	StructuredMetadata map[string]any    `json:"structured_metadata,omitempty"`
	Language           string            `json:"language,omitempty"`
	Authors            []string          `json:"authors,omitempty"`
	Section            string            `json:"section,omitempty"`
	Tags               []string          `json:"tags,omitempty"`
	PublicationDate    string            `json:"publication_date,omitempty"`

	Confidence    float64  `json:"confidence"`
	Paywall       bool     `json:"paywall_flag"`
	NeedsReview   bool     `json:"needs_review"`
	ReviewReasons []string `json:"review_reasons,omitempty"`

	Extraction ExtractionMeta `json:"extraction_metadata"`
	RawHTMLRef string         `json:"raw_html_ref,omitempty"`
	Timestamp  string         `json:"timestamp"`

	IngestionStatus IngestionStatus `json:"ingestion_status,omitempty"`
	SkipIngest      bool            `json:"-"`
}

// ExhaustionReason enumerates why a per-site loop terminated.
type ExhaustionReason string

const (
	ExhaustNone                ExhaustionReason = ""
	ExhaustLimitReached        ExhaustionReason = "limit_reached"
	ExhaustNoCandidates        ExhaustionReason = "no_candidates"
	ExhaustNoNewCandidates     ExhaustionReason = "no_new_candidates"
	ExhaustIngestionStalled    ExhaustionReason = "ingestion_stalled"
	ExhaustMaxBatchesReached   ExhaustionReason = "max_batches_reached"
	ExhaustGlobalTargetReached ExhaustionReason = "global_target_reached"
	ExhaustPaywallsOnly        ExhaustionReason = "paywalls_only"
	ExhaustProfileCompleted    ExhaustionReason = "profile_completed"
	ExhaustError               ExhaustionReason = "error"
)

// SiteMetrics aggregates one domain's results for a single run.
type SiteMetrics struct {
	Domain           string           `json:"domain"`
	Attempted        int              `json:"attempted"`
	Candidates       int              `json:"candidates"`
	Ingested         int              `json:"ingested"`
	Duplicates       int              `json:"duplicates"`
	Errors           int              `json:"errors"`
	Paywalls         int              `json:"paywalls"`
	ExhaustionReason ExhaustionReason `json:"exhaustion_reason,omitempty"`
	Details          []string         `json:"details,omitempty"`
}

// IngestDetail records the per-article outcome of an ingestion batch.
type IngestDetail struct {
	URL    string `json:"url"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// IngestOutcome is the result of ingesting one batch of articles.
type IngestOutcome struct {
	NewArticles int            `json:"new_articles"`
	Duplicates  int            `json:"duplicates"`
	Errors      int            `json:"errors"`
	Details     []IngestDetail `json:"details,omitempty"`
}

// AdaptiveSummary reduces per-article extraction telemetry into run-level
// numbers.
type AdaptiveSummary struct {
	ExtractorCounts map[string]int `json:"extractor_counts"`
	AvgConfidence   float64        `json:"avg_confidence"`
	AvgWordCount    float64        `json:"avg_word_count"`
	NeedsReview     int            `json:"needs_review"`
}

// RunSummary is the sole contract returned by the coordinator. Even on
// complete failure it is well-formed, with zero totals and per-site
// exhaustion reasons populated.
type RunSummary struct {
	SitesCrawled    int              `json:"sites_crawled"`
	TotalArticles   int              `json:"total_articles"`
	TotalDuplicates int              `json:"total_duplicates"`
	TotalErrors     int              `json:"total_errors"`
	TotalPaywalls   int              `json:"total_paywalls"`
	Articles        []*ArticleRecord `json:"articles"`

	SiteExhaustion         map[string]ExhaustionReason `json:"site_exhaustion"`
	SiteArticleBreakdown   map[string]int              `json:"site_article_breakdown,omitempty"`
	SiteDuplicateBreakdown map[string]int              `json:"site_duplicate_breakdown,omitempty"`
	SiteErrorBreakdown     map[string]int              `json:"site_error_breakdown,omitempty"`
	SitePaywallBreakdown   map[string]int              `json:"site_paywall_breakdown,omitempty"`
	IngestionDetails       map[string][]IngestDetail   `json:"ingestion_details,omitempty"`

	Elapsed             time.Duration    `json:"elapsed"`
	ArticlesPerSecond   float64          `json:"articles_per_second"`
	GlobalTargetTotal   int              `json:"global_target_total,omitempty"`
	GlobalTargetSet     bool             `json:"global_target_set"`
	GlobalTargetReached bool             `json:"global_target_reached"`
	Adaptive            *AdaptiveSummary `json:"adaptive_summary,omitempty"`
}

// ModalResult is the outcome of running the modal handler over a page.
type ModalResult struct {
	CleanedHTML    string         `json:"-"`
	ModalsDetected []string       `json:"modals_detected,omitempty"`
	AppliedCookies []*http.Cookie `json:"-"`
	Notes          []string       `json:"notes,omitempty"`
}

// PaywallVerdict is the paywall detector's judgement on a single page.
type PaywallVerdict struct {
	IsPaywall  bool     `json:"is_paywall"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons,omitempty"`
	ShouldSkip bool     `json:"should_skip"`
}

// PerformanceRecord is one historical crawl measurement for a source.
type PerformanceRecord struct {
	StrategyUsed      string  `json:"strategy_used"`
	ArticlesPerSecond float64 `json:"articles_per_second"`
}

// PaywallDetectionRecord asks the source store to persist a paywall state.
type PaywallDetectionRecord struct {
	SourceID  int64  `json:"source_id"`
	Domain    string `json:"domain"`
	SkipCount int    `json:"skip_count"`
	Threshold int    `json:"threshold"`
	Type      string `json:"type"`
}

// ---------- Capability Interfaces ----------

// Fetcher defines how pages are retrieved.
type Fetcher interface {
	// Name returns a human-readable identifier for this fetcher.
	Name() string

	// Fetch retrieves the page at the given URL.
	Fetch(ctx context.Context, url string) (*PageData, error)

	// Close releases any resources held by the fetcher.
	Close() error
}

// UAProvider picks a user agent for a domain. Implementations must be safe
// for concurrent use.
type UAProvider interface {
	UserAgentFor(domain string) string
}

// ProxyManager hands out proxies and accepts failure reports.
// Implementations must be safe for concurrent use.
type ProxyManager interface {
	NextProxy() string
	ReportFailure(proxy string, err error)
}

// StealthFactory produces extra request headers matched to a user agent.
type StealthFactory interface {
	HeadersFor(userAgent string) http.Header
}

// ModalHandler strips consent overlays from a page and reports cookies
// that should be applied to the active session.
type ModalHandler interface {
	Process(html string) *ModalResult
}

// PaywallDetector classifies a page as paywalled or not.
type PaywallDetector interface {
	Analyze(url, html, text string) *PaywallVerdict
}

// SiteCrawler harvests up to maxArticles article records from one site.
// Paywall-flagged records are returned with SkipIngest set so the caller
// can bucket them.
type SiteCrawler interface {
	CrawlSite(ctx context.Context, site *SiteConfig, maxArticles int) ([]*ArticleRecord, error)
}

// ProfileEngine fetches a batch through an externally profiled crawl
// engine. Used when a profile override selects a non-generic engine.
type ProfileEngine interface {
	FetchBatch(ctx context.Context, site *SiteConfig, limit int) ([]*ArticleRecord, error)
}

// Ingestor submits a batch of articles to downstream storage, annotating
// each article's IngestionStatus in place.
type Ingestor interface {
	IngestBatch(ctx context.Context, articles []*ArticleRecord) *IngestOutcome
}

// CandidateForwarder submits a candidate article for human review.
// Forwarding is best effort and must never fail the crawl.
type CandidateForwarder interface {
	Forward(ctx context.Context, article *ArticleRecord)
}

// SourceStore is the read-only view of configured sources.
type SourceStore interface {
	SourcesByDomain(ctx context.Context, domain string) ([]*SiteConfig, error)
	PerformanceHistory(ctx context.Context, sourceID int64, limit int) ([]PerformanceRecord, error)
	RecordPaywallDetection(ctx context.Context, rec PaywallDetectionRecord) (statusChanged bool, err error)
}
