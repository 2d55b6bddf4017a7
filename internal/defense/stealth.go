package defense

import (
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/newsgrid/harvester/internal/config"
)

// defaultStealthProfiles ship plausible browser header sets keyed to the
// user-agent family they imitate.
var defaultStealthProfiles = []config.StealthProfile{
	{
		UserAgentContains: "Chrome",
		Headers: map[string]string{
			"Accept-Language":           "en-US,en;q=0.9",
			"Accept-Encoding":           "gzip, deflate, br",
			"Sec-Ch-Ua-Mobile":          "?0",
			"Sec-Fetch-Dest":            "document",
			"Sec-Fetch-Mode":            "navigate",
			"Upgrade-Insecure-Requests": "1",
		},
	},
	{
		UserAgentContains: "Firefox",
		Headers: map[string]string{
			"Accept-Language":           "en-US,en;q=0.5",
			"Accept-Encoding":           "gzip, deflate, br",
			"DNT":                       "1",
			"Upgrade-Insecure-Requests": "1",
		},
	},
	{
		UserAgentContains: "Safari",
		Headers: map[string]string{
			"Accept-Language": "en-US,en;q=0.9",
			"Accept-Encoding": "gzip, deflate, br",
		},
	},
}

// StealthProfileSet matches header profiles to user agents. When no
// profile matches, a random one is used so requests never go out bare.
type StealthProfileSet struct {
	profiles []config.StealthProfile
}

// NewStealthProfileSet builds a set from configured profiles, falling
// back to the built-ins when none are configured.
func NewStealthProfileSet(profiles []config.StealthProfile) *StealthProfileSet {
	if len(profiles) == 0 {
		profiles = defaultStealthProfiles
	}
	return &StealthProfileSet{profiles: profiles}
}

// HeadersFor returns the header set for the profile matching userAgent,
// or a random profile's headers when none match.
func (s *StealthProfileSet) HeadersFor(userAgent string) http.Header {
	var chosen *config.StealthProfile
	for i := range s.profiles {
		if s.profiles[i].UserAgentContains != "" && strings.Contains(userAgent, s.profiles[i].UserAgentContains) {
			chosen = &s.profiles[i]
			break
		}
	}
	if chosen == nil {
		chosen = &s.profiles[rand.IntN(len(s.profiles))]
	}
	h := make(http.Header, len(chosen.Headers))
	for k, v := range chosen.Headers {
		h.Set(k, v)
	}
	return h
}
