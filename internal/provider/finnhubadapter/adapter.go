package finnhubadapter

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/finnhub"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider/ratelimit"
)

type Config struct {
	Name              string // display name, default: finnhub
	RequestsPerSecond int
}

// Adapter normalizes the Finnhub API into the provider contract. A quote
// costs two upstream calls (quote + candles); the candle call is
// best-effort since only a wholly-missing quote is an error.
type Adapter struct {
	cfg     Config
	client  *finnhub.FinnhubAPIClient
	limiter *ratelimit.SlidingWindow
	now     func() time.Time
}

func New(cfg Config, client *finnhub.FinnhubAPIClient) *Adapter {
	if cfg.Name == "" {
		cfg.Name = "finnhub"
	}
	return &Adapter{
		cfg:     cfg,
		client:  client,
		limiter: ratelimit.PerSecond(cfg.RequestsPerSecond),
		now:     time.Now,
	}
}

func (a *Adapter) Name() string { return a.cfg.Name }

// historyDays maps the adapter's period names onto a candle lookback.
func historyDays(period string) int {
	switch strings.ToUpper(period) {
	case "1D":
		return 2
	case "5D":
		return 7
	case "3M":
		return 90
	case "6M":
		return 180
	case "1Y":
		return 365
	default: // 1M
		return 30
	}
}

func (a *Adapter) GetPrice(ctx context.Context, symbol, period string) (*provider.Snapshot, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, provider.Errorf(a.cfg.Name, symbol, "rate limit wait: %w", err)
	}

	q, err := a.client.GetQuote(ctx, symbol)
	if err != nil {
		return nil, a.wrap(symbol, err)
	}
	// Finnhub answers unknown symbols with an all-zero quote.
	if q.Current == 0 && q.PreviousClose == 0 && q.Timestamp == 0 {
		return nil, provider.NotFound(a.cfg.Name, symbol)
	}

	closes := a.fetchCloses(ctx, symbol, period)
	if len(closes) == 0 {
		closes = []float64{q.Current}
	}

	change, changePct := provider.Derive(q.Current, q.PreviousClose)
	updated := a.now().UTC()
	if q.Timestamp > 0 {
		updated = time.Unix(q.Timestamp, 0).UTC()
	}

	snap := &provider.Snapshot{
		Symbol:        strings.ToUpper(symbol),
		Current:       q.Current,
		Open:          q.Open,
		High:          q.High,
		Low:           q.Low,
		PreviousClose: q.PreviousClose,
		Change:        change,
		ChangePercent: changePct,
		LastUpdated:   updated,
		Sparkline:     provider.NormalizeSparkline(closes, provider.SparklinePoints),
		Provider:      a.cfg.Name,
	}
	return snap.Sanitize(), nil
}

// fetchCloses pulls daily closes for the sparkline. Failures degrade to an
// empty series rather than failing the quote.
func (a *Adapter) fetchCloses(ctx context.Context, symbol, period string) []float64 {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil
	}
	to := a.now().Unix()
	from := to - int64(historyDays(period))*86400
	cs, err := a.client.GetCandles(ctx, symbol, "D", from, to)
	if err != nil || cs.Status == "no_data" {
		return nil
	}
	return cs.Close
}

func (a *Adapter) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, provider.Errorf(a.cfg.Name, "", "rate limit wait: %w", err)
	}

	sr, err := a.client.SearchSymbol(ctx, query)
	if err != nil {
		return nil, a.wrap("", err)
	}
	out := make([]provider.SearchResult, 0, len(sr.Result))
	for _, r := range sr.Result {
		if r.Symbol == "" {
			continue
		}
		out = append(out, provider.SearchResult{Symbol: r.Symbol, Name: r.Description})
	}
	return out, nil
}

func (a *Adapter) wrap(symbol string, err error) error {
	retryable := true
	if errors.Is(err, finnhub.ErrUnauthorized) {
		retryable = false
	}
	return &provider.Error{Provider: a.cfg.Name, Symbol: symbol, Retryable: retryable, Err: err}
}
