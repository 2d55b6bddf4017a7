package defense

import (
	"sync"

	"github.com/rs/zerolog"
)

// ProxyPool hands out proxies round-robin and tracks failures reported by
// callers. A proxy that keeps failing is pushed to the back of the
// rotation rather than removed; operators prune the pool via config.
type ProxyPool struct {
	mu       sync.Mutex
	proxies  []string
	next     int
	failures map[string]int
	logger   zerolog.Logger
}

// NewProxyPool builds a pool over the configured proxy URLs. A nil or
// empty list yields a pool that always returns "".
func NewProxyPool(proxies []string, logger zerolog.Logger) *ProxyPool {
	return &ProxyPool{
		proxies:  proxies,
		failures: make(map[string]int),
		logger:   logger.With().Str("module", "proxy_pool").Logger(),
	}
}

// NextProxy returns the next proxy in rotation, or "" when the pool is
// empty.
func (p *ProxyPool) NextProxy() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.proxies) == 0 {
		return ""
	}
	proxy := p.proxies[p.next%len(p.proxies)]
	p.next++
	return proxy
}

// ReportFailure records a fetch failure attributed to the given proxy.
func (p *ProxyPool) ReportFailure(proxy string, err error) {
	if proxy == "" {
		return
	}
	p.mu.Lock()
	p.failures[proxy]++
	count := p.failures[proxy]
	p.mu.Unlock()
	p.logger.Warn().Str("proxy", proxy).Int("failures", count).Err(err).Msg("proxy fetch failed")
}

// FailureCount reports how many failures have been attributed to proxy.
func (p *ProxyPool) FailureCount(proxy string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures[proxy]
}
