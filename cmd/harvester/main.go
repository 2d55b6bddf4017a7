package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/newsgrid/harvester/internal/config"
	"github.com/newsgrid/harvester/internal/crawler"
	"github.com/newsgrid/harvester/internal/defense"
	"github.com/newsgrid/harvester/internal/extractor"
	"github.com/newsgrid/harvester/internal/fetcher"
	"github.com/newsgrid/harvester/internal/hitl"
	"github.com/newsgrid/harvester/internal/ingest"
	"github.com/newsgrid/harvester/internal/output"
	"github.com/newsgrid/harvester/internal/scheduler"
	"github.com/newsgrid/harvester/internal/sources"
	"github.com/newsgrid/harvester/internal/strategy"
	"github.com/newsgrid/harvester/internal/urlnorm"
	"github.com/newsgrid/harvester/pkg/plugin"
)

var version = "1.0.0"

// flags holds all parsed CLI options.
type flags struct {
	domains []string

	perSite     int
	concurrency int
	global      int
	globalSet   bool

	timeout   int
	userAgent string
	browser   bool

	configFile string
	outputPath string

	silent  bool
	verbose bool
	noColor bool

	showHelp    bool
	showVersion bool
}

func main() {
	f := parseFlags()

	if f.showVersion {
		fmt.Printf("harvester v%s\n", version)
		os.Exit(0)
	}
	if f.showHelp || len(f.domains) == 0 {
		printUsage()
		if len(f.domains) == 0 && !f.showHelp {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg := config.Load()
	if f.configFile != "" {
		if err := cfg.LoadCrawlingFile(f.configFile); err != nil {
			fatal("config error: %v", err)
		}
	}
	logger := config.NewLogger(f.verbose, f.noColor)

	// Defensive capabilities, per toggle.
	var ua plugin.UAProvider
	if cfg.Crawling.EnableUserAgentRotation {
		ua = defense.NewRotatingUAProvider(cfg.Crawling.UserAgents)
	}
	var proxies plugin.ProxyManager
	if cfg.Crawling.EnableProxyPool && len(cfg.Crawling.Proxies) > 0 {
		proxies = defense.NewProxyPool(cfg.Crawling.Proxies, logger)
	}
	var stealth plugin.StealthFactory
	if cfg.Crawling.EnableStealthHeaders {
		stealth = defense.NewStealthProfileSet(cfg.Crawling.StealthProfiles)
	}
	var modal plugin.ModalHandler
	if cfg.Crawling.EnableModalHandler {
		modal = defense.NewConsentModalHandler(cfg.Crawling.ConsentCookies)
	}
	var paywall plugin.PaywallDetector
	if cfg.Crawling.EnablePaywallDetector {
		paywall = defense.NewHeuristicPaywallDetector(cfg.Crawling.Paywall)
	}

	snapshots := extractor.NewSnapshotStore(cfg.ServiceDir)
	ex := extractor.New(extractor.Config{
		MinWords:         cfg.MinWords,
		MinTextHTMLRatio: cfg.MinTextHTMLRatio,
		Snapshots:        snapshots,
	}, logger)

	if !cfg.EnableHTTPFetch {
		fatal("http fetching is disabled by UNIFIED_CRAWLER_ENABLE_HTTP_FETCH")
	}
	httpFetch := fetcher.NewHTTPFetcher(fetcher.HTTPFetcherConfig{
		UserAgent:      f.userAgent,
		Timeout:        time.Duration(f.timeout) * time.Second,
		UAProvider:     ua,
		ProxyManager:   proxies,
		StealthFactory: stealth,
	})
	defer httpFetch.Close()

	crawlCfg := crawler.Config{
		NormalizationMode: urlnorm.ParseMode(cfg.URLNormalization),
		HashAlgo:          cfg.URLHashAlgo,
	}
	standard := crawler.New(httpFetch, ex, modal, paywall, crawlCfg, logger)

	var enhanced *crawler.SiteCrawler
	if f.browser {
		browFetch, err := fetcher.NewBrowserFetcher(fetcher.BrowserFetcherConfig{
			UserAgent:  f.userAgent,
			UAProvider: ua,
		})
		if err != nil {
			logger.Warn().Err(err).Msg("browser fetcher unavailable, ai_enhanced sites fall back to http")
		} else {
			defer browFetch.Close()
			enhanced = crawler.New(browFetch, ex, modal, paywall, crawlCfg, logger)
		}
	}
	dispatcher := crawler.NewEngineDispatcher(standard, enhanced)

	store := sources.NewStaticStore(cfg.Crawling.Sources, logger)
	selector := strategy.New(store, cfg.Crawling.FastTierDomains, cfg.Crawling.ComplexTierDomains, logger)
	forwarder := hitl.New(hitl.Config{
		BaseURL:        cfg.HITLServiceURL,
		Enabled:        cfg.EnableHITL,
		StatsInterval:  cfg.HITLStatsInterval,
		FailureBackoff: cfg.HITLFailureBackoff,
		JobID:          uuid.NewString(),
	}, logger)
	ingestor := ingest.New(cfg.MCPBusURL, logger)

	var candidateForwarder plugin.CandidateForwarder
	if forwarder != nil {
		candidateForwarder = forwarder
	}
	coordinator := scheduler.New(dispatcher, nil, ingestor, candidateForwarder, store, selector,
		scheduler.Options{
			MaxSiteBatches:       cfg.MaxSiteBatches,
			PaywallSkipThreshold: cfg.PaywallSkipThreshold,
		}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	registerSignals(sig)
	go func() {
		<-sig
		fmt.Fprintf(os.Stderr, "\n\n%s Interrupt received, stopping...\n", clr("yellow", "!", f.noColor))
		cancel()
	}()

	if !f.silent {
		enableANSI()
		printBanner(f)
	}

	req := scheduler.RunRequest{
		Domains:     f.domains,
		PerSiteCap:  f.perSite,
		Concurrency: f.concurrency,
	}
	if f.globalSet {
		target := f.global
		req.GlobalTarget = &target
	}

	summary := coordinator.Run(ctx, req)

	if !f.silent {
		printSummary(summary, f)
	}
	if f.outputPath != "" {
		writer := output.NewTextWriter(f.outputPath)
		for domain, reason := range summary.SiteExhaustion {
			writer.WriteSite(plugin.SiteMetrics{
				Domain:           domain,
				Ingested:         summary.SiteArticleBreakdown[domain],
				Duplicates:       summary.SiteDuplicateBreakdown[domain],
				Errors:           summary.SiteErrorBreakdown[domain],
				Paywalls:         summary.SitePaywallBreakdown[domain],
				ExhaustionReason: reason,
			})
		}
		if err := writer.Finalize(summary); err != nil {
			fatal("failed to write report: %v", err)
		}
		if !f.silent {
			fmt.Printf("    Report: %s\n\n", clr("green", f.outputPath, f.noColor))
		}
	}
}

func printBanner(f *flags) {
	fmt.Println()
	fmt.Println("  HARVESTER v" + version)
	fmt.Println("  Multi-site news crawl orchestrator")
	fmt.Println("  " + strings.Repeat("-", 58))
	fmt.Printf("\n  %s %s\n", clr("cyan", "Targets:", f.noColor), strings.Join(f.domains, ", "))
	global := "none"
	if f.globalSet {
		global = strconv.Itoa(f.global)
	}
	fmt.Printf("  %s %d  %s %d  %s %s\n\n",
		clr("dim", "Per-site:", f.noColor), f.perSite,
		clr("dim", "Concurrency:", f.noColor), f.concurrency,
		clr("dim", "Global cap:", f.noColor), global,
	)
}

func printSummary(s *plugin.RunSummary, f *flags) {
	fmt.Println()
	fmt.Printf("  %s\n", strings.Repeat("-", 50))
	fmt.Printf("  %s Run complete\n", clr("green", "*", f.noColor))
	fmt.Printf("    Sites:    %s crawled\n", clr("cyan", strconv.Itoa(s.SitesCrawled), f.noColor))
	fmt.Printf("    Articles: %s new, %s duplicates, %s errors, %s paywalled\n",
		clr("yellow", strconv.Itoa(s.TotalArticles), f.noColor),
		clr("dim", strconv.Itoa(s.TotalDuplicates), f.noColor),
		clr("red", strconv.Itoa(s.TotalErrors), f.noColor),
		clr("dim", strconv.Itoa(s.TotalPaywalls), f.noColor),
	)
	fmt.Printf("    Rate:     %.2f articles/sec over %s\n", s.ArticlesPerSecond, s.Elapsed.Round(time.Millisecond))
	for domain, reason := range s.SiteExhaustion {
		fmt.Printf("      %s %s (%s)\n", clr("dim", "-", f.noColor), domain, reason)
	}
	fmt.Println()
}

// ---------- Flag parsing ----------

func parseFlags() *flags {
	f := &flags{
		perSite:     5,
		concurrency: 3,
		timeout:     10,
	}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		next := func() string {
			if i+1 < len(args) {
				i++
				return args[i]
			}
			fatal("flag %s requires an argument", arg)
			return ""
		}
		nextInt := func() int {
			v := next()
			n, err := strconv.Atoi(v)
			if err != nil {
				fatal("flag %s requires an integer, got %q", arg, v)
			}
			return n
		}

		switch arg {
		case "-d", "--domains":
			for _, d := range strings.Split(next(), ",") {
				if d = strings.TrimSpace(d); d != "" {
					f.domains = append(f.domains, d)
				}
			}
		case "-n", "--per-site":
			f.perSite = nextInt()
		case "-c", "--concurrency":
			f.concurrency = nextInt()
		case "-g", "--global":
			f.global = nextInt()
			f.globalSet = true
		case "-t", "--timeout":
			f.timeout = nextInt()
		case "-ua", "--user-agent":
			f.userAgent = next()
		case "--browser":
			f.browser = true
		case "--config":
			f.configFile = next()
		case "-o", "--output":
			f.outputPath = next()
		case "--silent":
			f.silent = true
		case "-v", "--verbose":
			f.verbose = true
		case "--no-color":
			f.noColor = true
		case "-h", "--help":
			f.showHelp = true
		case "--version":
			f.showVersion = true
		default:
			fatal("unknown flag: %s", arg)
		}
	}
	return f
}

func printUsage() {
	fmt.Print(`
  harvester - multi-site news crawl orchestrator

  Usage:
    harvester -d <domains> [options]

  Target:
    -d,  --domains       Comma-separated publisher domains or URLs

  Crawl:
    -n,  --per-site      Max new articles per site (default 5)
    -c,  --concurrency   Concurrent sites (default 3, up to 10)
    -g,  --global        Global article cap across all sites
    -t,  --timeout       Fetch timeout seconds (default 10)

  Request:
    -ua, --user-agent    Fallback user agent
         --browser       Enable headless browser for ai_enhanced sites

  Config & output:
         --config        YAML crawling config file
    -o,  --output        Write a plain-text run report
         --silent        Suppress terminal output
    -v,  --verbose       Debug logging
         --no-color      Disable ANSI colors

  Meta:
    -h,  --help          Show this help
         --version       Show version
`)
}

// ---------- helpers ----------

var colorCodes = map[string]string{
	"red":    "\033[31m",
	"green":  "\033[32m",
	"yellow": "\033[33m",
	"cyan":   "\033[36m",
	"dim":    "\033[2m",
}

func clr(color, s string, noColor bool) string {
	if noColor {
		return s
	}
	code, ok := colorCodes[color]
	if !ok {
		return s
	}
	return code + s + "\033[0m"
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}
