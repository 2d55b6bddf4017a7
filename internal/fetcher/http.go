// Package fetcher retrieves single pages over HTTP or a headless
// browser, applying the configured defensive measures per request.
package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/newsgrid/harvester/pkg/plugin"
)

// HTTPFetcher uses Colly for fast HTTP-only page fetching. Consent
// cookies applied via SetCookies are replayed on every subsequent fetch
// for that site, so a modal dismissed once stays dismissed.
type HTTPFetcher struct {
	collector *colly.Collector
	userAgent string

	ua      plugin.UAProvider
	proxies plugin.ProxyManager
	stealth plugin.StealthFactory

	mu      sync.Mutex
	cookies map[string][]*http.Cookie
}

// HTTPFetcherConfig holds configuration for the HTTP fetcher. The
// capability slots are optional; the fetcher branches only on presence.
type HTTPFetcherConfig struct {
	UserAgent       string
	Timeout         time.Duration
	MaxResponseSize int
	RespectRobots   bool

	UAProvider     plugin.UAProvider
	ProxyManager   plugin.ProxyManager
	StealthFactory plugin.StealthFactory
}

// NewHTTPFetcher creates a new Colly-based HTTP fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) *HTTPFetcher {
	c := colly.NewCollector()

	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	if !cfg.RespectRobots {
		c.IgnoreRobotsTxt = true
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	c.SetRequestTimeout(timeout)
	if cfg.MaxResponseSize > 0 {
		c.MaxBodySize = cfg.MaxResponseSize
	}

	return &HTTPFetcher{
		collector: c,
		userAgent: cfg.UserAgent,
		ua:        cfg.UAProvider,
		proxies:   cfg.ProxyManager,
		stealth:   cfg.StealthFactory,
		cookies:   make(map[string][]*http.Cookie),
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

// SetCookies stores cookies to be applied to every future fetch against
// the given site host.
func (f *HTTPFetcher) SetCookies(host string, cookies []*http.Cookie) {
	if len(cookies) == 0 {
		return
	}
	f.mu.Lock()
	f.cookies[host] = append(f.cookies[host], cookies...)
	f.mu.Unlock()
}

// Fetch retrieves the page at targetURL. HTTP status >= 400 is an error.
func (f *HTTPFetcher) Fetch(ctx context.Context, targetURL string) (*plugin.PageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	page := &plugin.PageData{
		URL:         targetURL,
		FinalURL:    targetURL,
		FetcherUsed: "http",
		FetchedAt:   start,
	}

	parsed, err := url.Parse(targetURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", targetURL, err)
	}
	domain := parsed.Hostname()

	// Clone the collector for this individual fetch so we get clean state.
	c := f.collector.Clone()

	// Resolve defensive measures for this request.
	agent := f.userAgent
	if f.ua != nil {
		agent = f.ua.UserAgentFor(domain)
	}
	if agent != "" {
		c.UserAgent = agent
	}

	proxy := ""
	if f.proxies != nil {
		if proxy = f.proxies.NextProxy(); proxy != "" {
			if err := c.SetProxy(proxy); err != nil {
				f.proxies.ReportFailure(proxy, err)
				proxy = ""
			}
		}
	}

	if f.stealth != nil {
		extra := f.stealth.HeadersFor(agent)
		c.OnRequest(func(r *colly.Request) {
			// Additive merge: caller-provided header values win.
			for key, values := range extra {
				if r.Headers.Get(key) == "" && len(values) > 0 {
					r.Headers.Set(key, values[0])
				}
			}
		})
	}

	f.mu.Lock()
	stored := f.cookies[parsed.Host]
	f.mu.Unlock()
	if len(stored) > 0 {
		_ = c.SetCookies(parsed.Scheme+"://"+parsed.Host, stored)
	}

	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		page.StatusCode = r.StatusCode
		page.HTML = string(r.Body)
		page.ResponseSize = len(r.Body)
		page.FinalURL = r.Request.URL.String()
		page.ContentType = r.Headers.Get("Content-Type")

		page.Headers = make(http.Header)
		for key, values := range *r.Headers {
			for _, v := range values {
				page.Headers.Add(key, v)
			}
		}
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = err
		if r != nil {
			page.StatusCode = r.StatusCode
			page.FinalURL = r.Request.URL.String()
		}
	})

	err = c.Visit(targetURL)
	c.Wait()
	page.FetchDuration = time.Since(start)

	if fetchErr == nil && err != nil {
		fetchErr = err
	}
	if fetchErr == nil && page.StatusCode >= 400 {
		fetchErr = fmt.Errorf("http status %d for %s", page.StatusCode, targetURL)
	}
	if fetchErr != nil {
		if proxy != "" && f.proxies != nil {
			f.proxies.ReportFailure(proxy, fetchErr)
		}
		return nil, fetchErr
	}
	return page, nil
}

func (f *HTTPFetcher) Close() error {
	return nil
}
