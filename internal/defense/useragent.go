// Package defense implements the optional defensive capabilities the site
// crawler composes: user-agent rotation, proxy pooling, stealth headers,
// consent-modal dismissal, and paywall detection. Each capability is a
// read-mostly singleton shared across sites and safe for concurrent use.
package defense

import (
	"hash/fnv"
	"strings"
)

// defaultUserAgents is used when no pool is configured.
var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
}

// RotatingUAProvider hands out a stable user agent per domain so a site
// sees a consistent browser identity across a run.
type RotatingUAProvider struct {
	pool []string
}

// NewRotatingUAProvider builds a provider over the given pool, falling
// back to the built-in agents when the pool is empty.
func NewRotatingUAProvider(pool []string) *RotatingUAProvider {
	if len(pool) == 0 {
		pool = defaultUserAgents
	}
	return &RotatingUAProvider{pool: pool}
}

// UserAgentFor returns the agent assigned to domain. The assignment is a
// stable function of the domain so repeated fetches do not flip identity
// mid-crawl.
func (p *RotatingUAProvider) UserAgentFor(domain string) string {
	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(domain)))
	return p.pool[int(h.Sum32())%len(p.pool)]
}
