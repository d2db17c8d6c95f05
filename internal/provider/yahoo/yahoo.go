package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wofare/edgar-filing-analyzer-sub000/internal/httpx"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/ratelimit"
)

type Config struct {
	Name              string
	BaseURL           string
	RequestsPerSecond int
}

// Provider fetches quotes from the Yahoo Finance chart API. One chart call
// yields both the current quote (meta) and the close series the sparkline
// is built from, so GetPrice costs a single upstream request.
type Provider struct {
	cfg     Config
	client  *httpx.Client
	limiter *ratelimit.SlidingWindow
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "yahoo"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://query1.finance.yahoo.com"
	}
	return &Provider{
		cfg:     cfg,
		client:  hc,
		limiter: ratelimit.PerSecond(cfg.RequestsPerSecond),
	}
}

func (p *Provider) Name() string { return p.cfg.Name }

// rangeFor maps the adapter's period names onto Yahoo chart ranges.
func rangeFor(period string) (rng, interval string) {
	switch strings.ToUpper(period) {
	case "1D":
		return "1d", "5m"
	case "5D":
		return "5d", "30m"
	case "3M":
		return "3mo", "1d"
	case "6M":
		return "6mo", "1d"
	case "1Y":
		return "1y", "1d"
	default: // 1M
		return "1mo", "1d"
	}
}

func (p *Provider) GetPrice(ctx context.Context, symbol, period string) (*provider.Snapshot, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, provider.Errorf(p.cfg.Name, symbol, "rate limit wait: %w", err)
	}

	rng, interval := rangeFor(period)
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=%s&range=%s&includePrePost=false",
		p.cfg.BaseURL, url.PathEscape(symbol), interval, rng)

	var resp chartResponse
	if err := p.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, p.wrap(symbol, err)
	}
	if resp.Chart.Error != nil {
		if strings.EqualFold(resp.Chart.Error.Code, "not found") {
			return nil, provider.NotFound(p.cfg.Name, symbol)
		}
		return nil, provider.Errorf(p.cfg.Name, symbol, "upstream error: %s - %s",
			resp.Chart.Error.Code, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, provider.NotFound(p.cfg.Name, symbol)
	}

	return p.normalize(symbol, interval, resp.Chart.Result[0])
}

func (p *Provider) normalize(symbol, interval string, r chartResult) (*provider.Snapshot, error) {
	closes := make([]float64, 0, len(r.Timestamp))
	var open, high, low, volume float64
	if len(r.Indicators.Quote) > 0 {
		q := r.Indicators.Quote[0]
		for _, c := range q.Close {
			if c != nil {
				closes = append(closes, *c)
			}
		}
		open = lastNonNil(q.Open)
		high = lastNonNil(q.High)
		low = lastNonNil(q.Low)
		volume = lastNonNil(q.Volume)
	}

	current := r.Meta.RegularMarketPrice
	if current == 0 && len(closes) > 0 {
		current = closes[len(closes)-1]
	}
	if current == 0 && len(closes) == 0 {
		return nil, provider.NotFound(p.cfg.Name, symbol)
	}

	// With daily bars the second-to-last close is yesterday's close, a
	// better daily-change base than the chart's pre-window previousClose.
	// Intraday bars are minutes apart, so the meta value (the previous
	// session's close for a 1d range) is the right one there.
	prevClose := r.Meta.ChartPreviousClose
	if interval == "1d" && len(closes) >= 2 {
		prevClose = closes[len(closes)-2]
	}

	change, changePct := provider.Derive(current, prevClose)
	updated := time.Now().UTC()
	if r.Meta.RegularMarketTime > 0 {
		updated = time.Unix(r.Meta.RegularMarketTime, 0).UTC()
	}

	snap := &provider.Snapshot{
		Symbol:        strings.ToUpper(symbol),
		Current:       current,
		Open:          open,
		High:          high,
		Low:           low,
		PreviousClose: prevClose,
		Change:        change,
		ChangePercent: changePct,
		Volume:        int64(volume),
		LastUpdated:   updated,
		Sparkline:     provider.NormalizeSparkline(closes, provider.SparklinePoints),
		Provider:      p.cfg.Name,
	}
	return snap.Sanitize(), nil
}

func (p *Provider) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, provider.Errorf(p.cfg.Name, "", "rate limit wait: %w", err)
	}

	u := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=10&newsCount=0",
		p.cfg.BaseURL, url.QueryEscape(query))
	var resp searchResponse
	if err := p.client.GetJSON(ctx, u, &resp); err != nil {
		return nil, p.wrap("", err)
	}

	out := make([]provider.SearchResult, 0, len(resp.Quotes))
	for _, q := range resp.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.ShortName
		if name == "" {
			name = q.LongName
		}
		out = append(out, provider.SearchResult{Symbol: q.Symbol, Name: name})
	}
	return out, nil
}

// wrap converts transport-level failures into provider errors, mapping 404
// onto the not-found condition.
func (p *Provider) wrap(symbol string, err error) error {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		if se.Status == 404 {
			return provider.NotFound(p.cfg.Name, symbol)
		}
		return &provider.Error{Provider: p.cfg.Name, Symbol: symbol, Retryable: se.Retryable(), Err: err}
	}
	return provider.Errorf(p.cfg.Name, symbol, "%w", err)
}

func lastNonNil(vals []*float64) float64 {
	for i := len(vals) - 1; i >= 0; i-- {
		if vals[i] != nil {
			return *vals[i]
		}
	}
	return 0
}

type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Currency           string  `json:"currency"`
		Symbol             string  `json:"symbol"`
		RegularMarketTime  int64   `json:"regularMarketTime"`
		RegularMarketPrice float64 `json:"regularMarketPrice"`
		ChartPreviousClose float64 `json:"chartPreviousClose"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Open   []*float64 `json:"open"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
	} `json:"quotes"`
}
