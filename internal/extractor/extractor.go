// Package extractor turns fetched HTML into article text and metadata
// through a tiered fallback chain: primary structured extraction, a
// readability-style scorer, boilerplate pruning, and a plain-text
// sanitiser. The driver merges tier results with a dominance rule —
// longer text wins for text, first non-empty wins for metadata — so
// fallback accounting stays trivial.
package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

// Extractor names recorded in outcomes.
const (
	TierPrimary     = "primary"
	TierReadability = "readability"
	TierBoilerplate = "boilerplate"
	TierSanitize    = "sanitize"
)

// Outcome is the pure value produced by one extraction.
type Outcome struct {
	Text            string
	Title           string
	CanonicalURL    string
	PublicationDate string
	Authors         []string
	Section         string
	Tags            []string
	Language        string

	ExtractorUsed      string
	FallbacksAttempted []string
	WordCount          int
	BoilerplateRatio   float64
	NeedsReview        bool
	ReviewReasons      []string

	Metadata           map[string]string
	StructuredMetadata map[string]any
	RawHTMLPath        string
}

// Extractor drives the tier chain. Safe for concurrent use.
type Extractor struct {
	minWords     int
	minTextRatio float64
	snapshots    *SnapshotStore
	logger       zerolog.Logger
}

// Config for the extractor's quality gates.
type Config struct {
	MinWords         int
	MinTextHTMLRatio float64
	Snapshots        *SnapshotStore
}

// New builds an Extractor. Zero gates default to 120 words and a 0.015
// text/html ratio.
func New(cfg Config, logger zerolog.Logger) *Extractor {
	minWords := cfg.MinWords
	if minWords <= 0 {
		minWords = 120
	}
	ratio := cfg.MinTextHTMLRatio
	if ratio <= 0 {
		ratio = 0.015
	}
	return &Extractor{
		minWords:     minWords,
		minTextRatio: ratio,
		snapshots:    cfg.Snapshots,
		logger:       logger.With().Str("module", "extractor").Logger(),
	}
}

// Extract runs the tier chain over html fetched from pageURL. It is pure
// with respect to its inputs apart from persisting the raw HTML snapshot.
func (e *Extractor) Extract(html, pageURL string) *Outcome {
	out := &Outcome{
		Metadata:           make(map[string]string),
		StructuredMetadata: make(map[string]any),
	}

	if e.snapshots != nil {
		path, err := e.snapshots.Save(pageURL, html)
		if err != nil {
			e.logger.Warn().Str("url", pageURL).Err(err).Msg("raw html snapshot failed")
		} else {
			out.RawHTMLPath = path
		}
	}

	doc, docErr := goquery.NewDocumentFromReader(strings.NewReader(html))
	if docErr == nil {
		applyMetadata(out, parseMetadata(doc, pageURL))

		if text := extractPrimary(doc); text != "" {
			out.Text = text
			out.ExtractorUsed = TierPrimary
		}

		if out.Text == "" || wordCount(out.Text) < e.minWords {
			out.FallbacksAttempted = append(out.FallbacksAttempted, TierReadability)
			if text := extractReadability(doc); len(text) > len(out.Text) {
				out.Text = text
				out.ExtractorUsed = TierReadability
			}
		}

		if out.Text == "" {
			out.FallbacksAttempted = append(out.FallbacksAttempted, TierBoilerplate)
			if text := extractBoilerplate(doc); text != "" {
				out.Text = text
				out.ExtractorUsed = TierBoilerplate
			}
		}
	}

	if out.Text == "" {
		out.FallbacksAttempted = append(out.FallbacksAttempted, TierSanitize)
		if text := sanitizeHTML(html); text != "" {
			out.Text = text
			out.ExtractorUsed = TierSanitize
		}
	}

	out.WordCount = wordCount(out.Text)
	if len(html) > 0 {
		out.BoilerplateRatio = float64(len(out.Text)) / float64(len(html))
	}

	if out.WordCount < e.minWords {
		out.NeedsReview = true
		out.ReviewReasons = append(out.ReviewReasons, "word_count_below_minimum")
	}
	if len(html) > 0 && out.BoilerplateRatio < e.minTextRatio {
		out.NeedsReview = true
		out.ReviewReasons = append(out.ReviewReasons, "text_html_ratio_below_minimum")
	}
	if strings.Contains(strings.ToLower(out.Text), "lorem ipsum") {
		out.NeedsReview = true
		out.ReviewReasons = append(out.ReviewReasons, "placeholder_text_detected")
	}
	return out
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
