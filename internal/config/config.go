// Package config resolves the harvester's runtime configuration from
// environment variables and an optional YAML crawling-config file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds every runtime knob the scheduler and its components read.
type Config struct {
	// Crawl control
	MaxSiteBatches       int
	PaywallSkipThreshold int
	EnableHTTPFetch      bool

	// URL canonicalisation
	URLNormalization string
	URLHashAlgo      string

	// Extraction quality gates
	MinWords         int
	MinTextHTMLRatio float64

	// HITL
	HITLServiceURL         string
	EnableHITL             bool
	HITLStatsInterval      time.Duration
	HITLFailureBackoff     time.Duration
	HITLPrioritySites      []string

	// Storage
	MCPBusURL string

	// Snapshots
	ServiceDir string

	Crawling CrawlingConfig
}

// StealthProfile supplies extra headers matched to a user-agent family.
type StealthProfile struct {
	UserAgentContains string            `yaml:"user_agent_contains"`
	Headers           map[string]string `yaml:"headers"`
}

// ConsentCookie is a cookie pre-applied to bypass consent walls.
type ConsentCookie struct {
	Name    string   `yaml:"name"`
	Value   string   `yaml:"value"`
	Domains []string `yaml:"domains"`
}

// SourceDef is a statically configured publisher source.
type SourceDef struct {
	ID       int64             `yaml:"id"`
	Name     string            `yaml:"name"`
	Domain   string            `yaml:"domain"`
	URL      string            `yaml:"url"`
	Metadata map[string]string `yaml:"metadata"`
	Strategy string            `yaml:"crawling_strategy"`
}

// PaywallOptions tunes the paywall detector.
type PaywallOptions struct {
	SkipConfidence float64  `yaml:"skip_confidence"`
	ExtraMarkers   []string `yaml:"extra_markers"`
}

// CrawlingConfig is the YAML-supplied block covering defensive measures
// and static sources.
type CrawlingConfig struct {
	EnableUserAgentRotation bool `yaml:"enable_user_agent_rotation"`
	EnableProxyPool         bool `yaml:"enable_proxy_pool"`
	EnableStealthHeaders    bool `yaml:"enable_stealth_headers"`
	EnableModalHandler      bool `yaml:"enable_modal_handler"`
	EnablePaywallDetector   bool `yaml:"enable_paywall_detector"`

	UserAgents      []string         `yaml:"user_agents"`
	Proxies         []string         `yaml:"proxies"`
	StealthProfiles []StealthProfile `yaml:"stealth_profiles"`
	ConsentCookies  []ConsentCookie  `yaml:"consent_cookies"`
	Paywall         PaywallOptions   `yaml:"paywall"`

	FastTierDomains    []string `yaml:"fast_tier_domains"`
	ComplexTierDomains []string `yaml:"complex_tier_domains"`

	Sources []SourceDef `yaml:"sources"`
}

// Load builds a Config from the environment, applying defaults for
// anything unset.
func Load() *Config {
	cfg := &Config{
		MaxSiteBatches:       envInt("UNIFIED_CRAWLER_MAX_SITE_BATCHES", 4),
		PaywallSkipThreshold: envInt("UNIFIED_CRAWLER_PAYWALL_SKIP_THRESHOLD", 3),
		EnableHTTPFetch:      envBool("UNIFIED_CRAWLER_ENABLE_HTTP_FETCH", true),
		URLNormalization:     envStr("ARTICLE_URL_NORMALIZATION", "strict"),
		URLHashAlgo:          envStr("ARTICLE_URL_HASH_ALGO", "sha256"),
		MinWords:             envInt("ARTICLE_MIN_WORDS", 120),
		MinTextHTMLRatio:     envFloat("ARTICLE_MIN_TEXT_HTML_RATIO", 0.015),
		EnableHITL:           envBool("ENABLE_HITL_PIPELINE", true),
		HITLStatsInterval:    time.Duration(envInt("HITL_STATS_INTERVAL_SECONDS", 60)) * time.Second,
		HITLFailureBackoff:   time.Duration(envInt("HITL_FAILURE_BACKOFF_SECONDS", 180)) * time.Second,
		MCPBusURL:            envStr("MCP_BUS_URL", "http://localhost:8000"),
		ServiceDir:           envStr("SERVICE_DIR", "."),
		Crawling: CrawlingConfig{
			EnableModalHandler:    true,
			EnablePaywallDetector: true,
		},
	}

	cfg.HITLServiceURL = os.Getenv("HITL_SERVICE_URL")
	if cfg.HITLServiceURL == "" {
		cfg.HITLServiceURL = os.Getenv("HITL_SERVICE_ADDRESS")
	}
	if csv := os.Getenv("HITL_PRIORITY_SITES"); csv != "" {
		for _, s := range strings.Split(csv, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cfg.HITLPrioritySites = append(cfg.HITLPrioritySites, strings.ToLower(s))
			}
		}
	}

	if cfg.MaxSiteBatches < 1 {
		cfg.MaxSiteBatches = 1
	}
	if cfg.PaywallSkipThreshold < 1 {
		cfg.PaywallSkipThreshold = 1
	}
	return cfg
}

// LoadCrawlingFile merges a YAML crawling-config file into cfg.
func (c *Config) LoadCrawlingFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read crawling config: %w", err)
	}
	var cc CrawlingConfig
	if err := yaml.Unmarshal(data, &cc); err != nil {
		return fmt.Errorf("parse crawling config %s: %w", path, err)
	}
	c.Crawling = cc
	return nil
}

// NewLogger builds the root zerolog logger. Components derive child
// loggers via logger.With().Str("module", ...).Logger().
func NewLogger(verbose, noColor bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(env)); err == nil {
			level = parsed
		}
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor, TimeFormat: time.TimeOnly}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

// ---------- env helpers ----------

func envStr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}
