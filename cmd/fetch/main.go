// Command fetch fetches a single price snapshot from the configured
// providers and prints it. Useful for smoke-testing credentials and
// provider wiring without running the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/wofare/edgar-filing-analyzer-sub000/internal/adapter"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/cache"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/config"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/health"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/httpx"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/alphavantage"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/finnhub"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/finnhubadapter"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/yahoo"
)

func main() {
	_ = godotenv.Load()

	var (
		symbol     = flag.String("symbol", "", "ticker symbol to fetch (required)")
		period     = flag.String("period", adapter.DefaultPeriod, "sparkline period: 1D, 5D, 1M, 3M, 6M, 1Y")
		forced     = flag.String("provider", "", "query only this provider, no failover")
		skipCache  = flag.Bool("skip-cache", false, "bypass the snapshot cache")
		asJSON     = flag.Bool("json", false, "print the raw JSON snapshot")
		timeout    = flag.Duration("timeout", 15*time.Second, "overall fetch timeout")
		configPath = flag.String("config", os.Getenv("CONFIG_FILE"), "path to config file")
	)
	flag.Parse()

	if *symbol == "" {
		fmt.Fprintln(os.Stderr, "usage: fetch -symbol AAPL [-period 1M] [-provider yahoo] [-json]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.WarnLevel)

	providers, err := buildProviders(cfg, *timeout)
	if err != nil {
		log.Fatalf("providers: %v", err)
	}
	if len(providers) == 0 {
		log.Fatal("no providers enabled")
	}

	ids := make([]string, 0, len(providers))
	for _, p := range providers {
		ids = append(ids, p.Name())
	}

	ad := adapter.New(adapter.Config{
		Primary:      cfg.Failover.Primary,
		Fallbacks:    cfg.Failover.Fallbacks,
		CacheEnabled: false,
		SearchLimit:  cfg.Search.MaxResults,
	}, providers, cache.New(time.Duration(cfg.Cache.TTLSeconds)*time.Second, cfg.Cache.MaxEntries), health.New(ids...), log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	snap, err := ad.GetPriceData(ctx, *symbol, adapter.Options{
		Period:        *period,
		ForceProvider: *forced,
		SkipCache:     *skipCache,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "fetch failed: %v\n", err)
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(snap)
		return
	}
	printSnapshot(snap)
}

func printSnapshot(s *provider.Snapshot) {
	fmt.Printf("%s  %.2f  %+.2f (%+.2f%%)\n", s.Symbol, s.Current, s.Change, s.ChangePercent)
	fmt.Printf("  open %.2f  high %.2f  low %.2f  prev close %.2f\n", s.Open, s.High, s.Low, s.PreviousClose)
	fmt.Printf("  volume %d  provider %s", s.Volume, s.Provider)
	if s.FallbackUsed {
		fmt.Printf("  (fallback; primary: %s)", s.PrimaryError)
	}
	fmt.Println()
	fmt.Printf("  updated %s\n", s.LastUpdated.Format(time.RFC3339))
}

func buildProviders(cfg config.Config, timeout time.Duration) ([]provider.Provider, error) {
	httpClient := httpx.New(timeout)

	var providers []provider.Provider
	if cfg.Yahoo.Enabled {
		providers = append(providers, yahoo.New(yahoo.Config{
			BaseURL:           cfg.Yahoo.Endpoint,
			RequestsPerSecond: cfg.Yahoo.RequestsPerSecond,
		}, httpClient))
	}
	if cfg.Finnhub.Enabled && cfg.Finnhub.APIKey != "" {
		opts := []finnhub.FinnhubAPIClientOption{
			finnhub.WithHTTPClient(httpClient.HTTP),
		}
		if cfg.Finnhub.Endpoint != "" {
			opts = append(opts, finnhub.WithBaseURL(cfg.Finnhub.Endpoint))
		}
		fhClient, err := finnhub.NewFinnhubAPIClient(cfg.Finnhub.APIKey, opts...)
		if err != nil {
			return nil, err
		}
		providers = append(providers, finnhubadapter.New(finnhubadapter.Config{
			RequestsPerSecond: cfg.Finnhub.RequestsPerSecond,
		}, fhClient))
	}
	if cfg.AlphaVantage.Enabled && cfg.AlphaVantage.APIKey != "" {
		providers = append(providers, alphavantage.New(alphavantage.Config{
			BaseURL:           cfg.AlphaVantage.Endpoint,
			APIKey:            cfg.AlphaVantage.APIKey,
			RequestsPerSecond: cfg.AlphaVantage.RequestsPerSecond,
		}, httpClient))
	}
	return providers, nil
}
