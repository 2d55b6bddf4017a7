package fetcher

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/newsgrid/harvester/pkg/plugin"
)

// BrowserFetcher uses Rod (headless Chrome) for JS-rendered pages. The
// ai_enhanced engine path routes through it; everything else stays on
// the HTTP fetcher.
type BrowserFetcher struct {
	browser     *rod.Browser
	timeout     time.Duration
	pageTimeout time.Duration
	ua          plugin.UAProvider
	userAgent   string
}

// BrowserFetcherConfig holds configuration for the browser fetcher.
type BrowserFetcherConfig struct {
	Timeout     time.Duration
	PageTimeout time.Duration
	UserAgent   string
	UAProvider  plugin.UAProvider
}

// NewBrowserFetcher launches headless Chrome and connects to it.
func NewBrowserFetcher(cfg BrowserFetcherConfig) (*BrowserFetcher, error) {
	u, err := launcher.New().
		Headless(true).
		Set("no-sandbox").
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	pageTimeout := cfg.PageTimeout
	if pageTimeout == 0 {
		pageTimeout = 15 * time.Second
	}

	return &BrowserFetcher{
		browser:     browser,
		timeout:     timeout,
		pageTimeout: pageTimeout,
		ua:          cfg.UAProvider,
		userAgent:   cfg.UserAgent,
	}, nil
}

func (f *BrowserFetcher) Name() string { return "browser" }

// Fetch navigates to targetURL and returns the rendered HTML.
func (f *BrowserFetcher) Fetch(ctx context.Context, targetURL string) (*plugin.PageData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	page := &plugin.PageData{
		URL:         targetURL,
		FinalURL:    targetURL,
		FetcherUsed: "browser",
		FetchedAt:   start,
	}

	rodPage, err := f.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		page.FetchDuration = time.Since(start)
		return nil, err
	}
	defer rodPage.Close()

	rodPage = rodPage.Context(ctx).Timeout(f.timeout)

	agent := f.userAgent
	if f.ua != nil {
		agent = f.ua.UserAgentFor(hostOf(targetURL))
	}
	if agent != "" {
		_ = rodPage.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: agent})
	}

	if err := rodPage.Navigate(targetURL); err != nil {
		page.FetchDuration = time.Since(start)
		return nil, err
	}

	// The page may never fully stabilize on ad-heavy publishers; take
	// whatever rendered.
	_ = rodPage.WaitStable(f.pageTimeout)

	if info, err := rodPage.Info(); err == nil {
		page.FinalURL = info.URL
	}

	html, err := rodPage.HTML()
	if err != nil {
		page.FetchDuration = time.Since(start)
		return nil, err
	}
	page.HTML = html
	page.ResponseSize = len(html)
	page.StatusCode = http.StatusOK
	page.ContentType = "text/html"
	page.Headers = make(http.Header)
	page.FetchDuration = time.Since(start)
	return page, nil
}

func (f *BrowserFetcher) Close() error {
	if f.browser != nil {
		return f.browser.Close()
	}
	return nil
}

func hostOf(rawURL string) string {
	rest := rawURL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		rest = rest[:i]
	}
	return rest
}
