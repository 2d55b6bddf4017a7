package defense

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/newsgrid/harvester/internal/config"
	"github.com/newsgrid/harvester/pkg/plugin"
)

// consentSelectors match the overlay containers consent-management
// platforms inject. Matching is by substring on id/class, lowercased.
var consentSelectors = []string{
	"cookie-banner", "cookie-consent", "cookie-notice", "cookie-wall",
	"consent-banner", "consent-modal", "consent-overlay",
	"gdpr-banner", "gdpr-consent",
	"cmp-container", "qc-cmp2-container", "onetrust-consent-sdk",
	"sp_message_container", "didomi-popup",
	"modal-backdrop", "overlay-backdrop",
}

// ConsentModalHandler strips consent overlays out of fetched HTML and
// reports cookies that, once merged into the site session, keep the
// overlays from coming back.
type ConsentModalHandler struct {
	cookies []config.ConsentCookie
}

// NewConsentModalHandler builds a handler with the configured default
// consent cookies.
func NewConsentModalHandler(cookies []config.ConsentCookie) *ConsentModalHandler {
	return &ConsentModalHandler{cookies: cookies}
}

// Process removes consent overlays from html. The returned result carries
// the cleaned document, the names of everything removed, and the consent
// cookies to apply to the session.
func (m *ConsentModalHandler) Process(html string) *plugin.ModalResult {
	res := &plugin.ModalResult{CleanedHTML: html}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		res.Notes = append(res.Notes, "parse failed: "+err.Error())
		return res
	}

	removed := 0
	doc.Find("div, section, aside, dialog").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		class, _ := s.Attr("class")
		haystack := strings.ToLower(id + " " + class)
		for _, marker := range consentSelectors {
			if strings.Contains(haystack, marker) {
				res.ModalsDetected = append(res.ModalsDetected, marker)
				s.Remove()
				removed++
				return
			}
		}
	})

	// Fixed-position full-screen wrappers with frozen body scroll are the
	// other common overlay shape.
	doc.Find("body").Each(func(_ int, s *goquery.Selection) {
		if style, ok := s.Attr("style"); ok && strings.Contains(strings.ToLower(style), "overflow: hidden") {
			s.RemoveAttr("style")
			res.Notes = append(res.Notes, "unfroze body scroll")
		}
	})

	if removed > 0 {
		if cleaned, err := doc.Html(); err == nil {
			res.CleanedHTML = cleaned
		}
		res.Notes = append(res.Notes, fmt.Sprintf("removed %d overlay container(s)", removed))
	}

	for _, c := range m.cookies {
		if len(c.Domains) == 0 {
			res.AppliedCookies = append(res.AppliedCookies, &http.Cookie{Name: c.Name, Value: c.Value})
			continue
		}
		for _, d := range c.Domains {
			res.AppliedCookies = append(res.AppliedCookies, &http.Cookie{Name: c.Name, Value: c.Value, Domain: d})
		}
	}
	return res
}
