// Package output persists a plain-text run report, mirroring the
// terminal output without ANSI color codes.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/newsgrid/harvester/pkg/plugin"
)

// TextWriter writes a crawl run report to a plain text file.
type TextWriter struct {
	path  string
	lines []string
	mu    sync.Mutex
}

// NewTextWriter creates a new plain-text report writer.
func NewTextWriter(path string) *TextWriter {
	return &TextWriter{path: path}
}

func (w *TextWriter) Name() string { return "text" }

// WriteSite appends one site's line to the report.
func (w *TextWriter) WriteSite(m plugin.SiteMetrics) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lines = append(w.lines, fmt.Sprintf("  %-28s ingested:%d dup:%d err:%d paywall:%d (%s)",
		m.Domain, m.Ingested, m.Duplicates, m.Errors, m.Paywalls, m.ExhaustionReason))
	for _, detail := range m.Details {
		w.lines = append(w.lines, "      +-- "+detail)
	}
}

// Finalize writes the full report and the summary block.
func (w *TextWriter) Finalize(summary *plugin.RunSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var b strings.Builder

	b.WriteString("\n  HARVESTER\n")
	b.WriteString("  Multi-site news crawl report\n")
	b.WriteString("  " + strings.Repeat("-", 58) + "\n\n")
	b.WriteString(fmt.Sprintf("  Generated: %s\n\n", time.Now().Format(time.RFC1123)))

	for _, line := range w.lines {
		b.WriteString(line + "\n")
	}

	b.WriteString("\n  " + strings.Repeat("-", 50) + "\n")
	b.WriteString("  Run complete\n")
	b.WriteString(fmt.Sprintf("    Sites:    %d crawled\n", summary.SitesCrawled))
	b.WriteString(fmt.Sprintf("    Articles: %d new, %d duplicates, %d errors, %d paywalled\n",
		summary.TotalArticles, summary.TotalDuplicates, summary.TotalErrors, summary.TotalPaywalls))
	b.WriteString(fmt.Sprintf("    Rate:     %.2f articles/sec over %s\n",
		summary.ArticlesPerSecond, summary.Elapsed.Round(time.Millisecond)))
	if summary.GlobalTargetSet {
		b.WriteString(fmt.Sprintf("    Budget:   %d requested, reached=%v\n",
			summary.GlobalTargetTotal, summary.GlobalTargetReached))
	}
	if summary.Adaptive != nil {
		var tiers []string
		for tier, count := range summary.Adaptive.ExtractorCounts {
			tiers = append(tiers, fmt.Sprintf("%s:%d", tier, count))
		}
		sort.Strings(tiers)
		b.WriteString("    Tiers:    " + strings.Join(tiers, ", ") + "\n")
	}
	b.WriteString("\n")

	return os.WriteFile(w.path, []byte(b.String()), 0o644)
}
