package alphavantage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/wofare/edgar-filing-analyzer-sub000/internal/httpx"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/ratelimit"
)

type Config struct {
	Name              string
	BaseURL           string
	APIKey            string
	RequestsPerSecond int
}

// Provider fetches quotes from the Alpha Vantage REST API. All numeric
// fields arrive as strings and are parsed tolerantly; the free tier
// answers over-quota requests with an in-band "Note" payload rather than
// an HTTP error, which surfaces here as a retryable provider error.
type Provider struct {
	cfg     Config
	client  *httpx.Client
	limiter *ratelimit.SlidingWindow
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "alphavantage"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co"
	}
	return &Provider{
		cfg:     cfg,
		client:  hc,
		limiter: ratelimit.PerSecond(cfg.RequestsPerSecond),
	}
}

func (p *Provider) Name() string { return p.cfg.Name }

func (p *Provider) GetPrice(ctx context.Context, symbol, period string) (*provider.Snapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, provider.Errorf(p.cfg.Name, symbol, "rate limit wait: %w", err)
	}

	var quote quoteResponse
	if err := p.client.GetJSON(ctx, p.endpoint("GLOBAL_QUOTE", "symbol", symbol), &quote); err != nil {
		return nil, p.wrap(symbol, err)
	}
	if err := softError(quote.Note, quote.Information); err != nil {
		return nil, provider.Errorf(p.cfg.Name, symbol, "%w", err)
	}
	g := quote.GlobalQuote
	if g["01. symbol"] == "" && g["05. price"] == "" {
		return nil, provider.NotFound(p.cfg.Name, symbol)
	}

	current := provider.ParseFloat(g["05. price"])
	prevClose := provider.ParseFloat(g["08. previous close"])
	change, changePct := provider.Derive(current, prevClose)

	updated := time.Now().UTC()
	if d, err := time.Parse("2006-01-02", g["07. latest trading day"]); err == nil {
		updated = d.UTC()
	}

	snap := &provider.Snapshot{
		Symbol:        strings.ToUpper(symbol),
		Current:       current,
		Open:          provider.ParseFloat(g["02. open"]),
		High:          provider.ParseFloat(g["03. high"]),
		Low:           provider.ParseFloat(g["04. low"]),
		PreviousClose: prevClose,
		Change:        change,
		ChangePercent: changePct,
		Volume:        provider.ParseInt(g["06. volume"]),
		LastUpdated:   updated,
		Sparkline:     provider.NormalizeSparkline(p.fetchCloses(ctx, symbol), provider.SparklinePoints),
		Provider:      p.cfg.Name,
	}
	return snap.Sanitize(), nil
}

// fetchCloses pulls the daily close series, oldest first. Best effort: a
// failed or throttled history call degrades to an empty series and the
// sparkline pads from whatever remains.
func (p *Provider) fetchCloses(ctx context.Context, symbol string) []float64 {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil
	}
	var series seriesResponse
	if err := p.client.GetJSON(ctx, p.endpoint("TIME_SERIES_DAILY", "symbol", symbol), &series); err != nil {
		return nil
	}
	if softError(series.Note, series.Information) != nil || len(series.Daily) == 0 {
		return nil
	}

	dates := make([]string, 0, len(series.Daily))
	for d := range series.Daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	if len(dates) > provider.SparklinePoints {
		dates = dates[len(dates)-provider.SparklinePoints:]
	}
	closes := make([]float64, 0, len(dates))
	for _, d := range dates {
		closes = append(closes, provider.ParseFloat(series.Daily[d]["4. close"]))
	}
	return closes
}

func (p *Provider) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, provider.Errorf(p.cfg.Name, "", "rate limit wait: %w", err)
	}

	var resp searchResponse
	if err := p.client.GetJSON(ctx, p.endpoint("SYMBOL_SEARCH", "keywords", query), &resp); err != nil {
		return nil, p.wrap("", err)
	}
	if err := softError(resp.Note, resp.Information); err != nil {
		return nil, provider.Errorf(p.cfg.Name, "", "%w", err)
	}

	out := make([]provider.SearchResult, 0, len(resp.BestMatches))
	for _, m := range resp.BestMatches {
		if m["1. symbol"] == "" {
			continue
		}
		out = append(out, provider.SearchResult{Symbol: m["1. symbol"], Name: m["2. name"]})
	}
	return out, nil
}

func (p *Provider) endpoint(function, paramKey, paramValue string) string {
	return fmt.Sprintf("%s/query?function=%s&%s=%s&apikey=%s",
		p.cfg.BaseURL, function, paramKey, url.QueryEscape(paramValue), url.QueryEscape(p.cfg.APIKey))
}

func (p *Provider) wrap(symbol string, err error) error {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		return &provider.Error{Provider: p.cfg.Name, Symbol: symbol, Retryable: se.Retryable(), Err: err}
	}
	return provider.Errorf(p.cfg.Name, symbol, "%w", err)
}

// softError turns Alpha Vantage's in-band throttle/diagnostic payloads
// into an error.
func softError(note, information string) error {
	if note != "" {
		return fmt.Errorf("throttled: %s", note)
	}
	if information != "" {
		return fmt.Errorf("upstream notice: %s", information)
	}
	return nil
}

type quoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
}

type seriesResponse struct {
	Daily       map[string]map[string]string `json:"Time Series (Daily)"`
	Note        string                       `json:"Note"`
	Information string                       `json:"Information"`
}

type searchResponse struct {
	BestMatches []map[string]string `json:"bestMatches"`
	Note        string              `json:"Note"`
	Information string              `json:"Information"`
}
