package defense

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/newsgrid/harvester/internal/config"
	"github.com/newsgrid/harvester/pkg/plugin"
)

// paywallMarkers are phrases that strongly suggest a metered or hard
// paywall when they appear near-empty article text.
var paywallMarkers = []string{
	"subscribe to continue",
	"subscribe to read",
	"subscription required",
	"to continue reading",
	"already a subscriber",
	"register to continue",
	"this content is for subscribers",
	"become a member to read",
	"you have reached your article limit",
	"unlock this article",
}

// paywallContainerMarkers match paywall UI containers by id/class.
var paywallContainerMarkers = []string{
	"paywall", "piano-offer", "meter-wall", "regwall", "subscription-wall",
}

// HeuristicPaywallDetector scores paywall signals on a page. It is
// deliberately conservative: pages only become skip candidates above the
// configured confidence.
type HeuristicPaywallDetector struct {
	skipConfidence float64
	extraMarkers   []string
}

// NewHeuristicPaywallDetector builds a detector from config options.
// A zero SkipConfidence defaults to 0.6.
func NewHeuristicPaywallDetector(opts config.PaywallOptions) *HeuristicPaywallDetector {
	conf := opts.SkipConfidence
	if conf <= 0 {
		conf = 0.6
	}
	markers := make([]string, 0, len(opts.ExtraMarkers))
	for _, m := range opts.ExtraMarkers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			markers = append(markers, m)
		}
	}
	return &HeuristicPaywallDetector{skipConfidence: conf, extraMarkers: markers}
}

// Analyze inspects (url, html, text) and returns a verdict. ShouldSkip is
// set when confidence crosses the skip threshold.
func (d *HeuristicPaywallDetector) Analyze(url, html, text string) *plugin.PaywallVerdict {
	v := &plugin.PaywallVerdict{}
	lowerText := strings.ToLower(text)
	lowerHTML := strings.ToLower(html)

	for _, marker := range append(paywallMarkers, d.extraMarkers...) {
		if strings.Contains(lowerText, marker) || strings.Contains(lowerHTML, marker) {
			v.Confidence += 0.35
			v.Reasons = append(v.Reasons, "marker: "+marker)
		}
	}

	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		doc.Find("div, section, aside").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			id, _ := s.Attr("id")
			class, _ := s.Attr("class")
			haystack := strings.ToLower(id + " " + class)
			for _, marker := range paywallContainerMarkers {
				if strings.Contains(haystack, marker) {
					v.Confidence += 0.3
					v.Reasons = append(v.Reasons, "container: "+marker)
					return false
				}
			}
			return true
		})
	}

	// Schema.org publishers declare metering explicitly.
	if strings.Contains(lowerHTML, `"isaccessibleforfree"`) &&
		(strings.Contains(lowerHTML, `"isaccessibleforfree": false`) ||
			strings.Contains(lowerHTML, `"isaccessibleforfree":false`) ||
			strings.Contains(lowerHTML, `"isaccessibleforfree": "false"`) ||
			strings.Contains(lowerHTML, `"isaccessibleforfree":"false"`)) {
		v.Confidence += 0.5
		v.Reasons = append(v.Reasons, "schema: isAccessibleForFree=false")
	}

	// Marker text over a stub body is the classic truncated-teaser shape.
	if len(v.Reasons) > 0 && len(strings.Fields(text)) < 80 {
		v.Confidence += 0.2
		v.Reasons = append(v.Reasons, "short body under paywall signals")
	}

	if v.Confidence > 1 {
		v.Confidence = 1
	}
	v.IsPaywall = v.Confidence >= 0.5
	v.ShouldSkip = v.Confidence >= d.skipConfidence
	return v
}
