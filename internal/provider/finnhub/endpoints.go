package finnhub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"strconv"
)

var (
	// ErrRateLimited is returned on an HTTP 429 from Finnhub.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthorized is returned when the API token is rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// Quote is the Finnhub real-time quote payload.
type Quote struct {
	Current       float64 `json:"c"`
	Change        float64 `json:"d"`
	PercentChange float64 `json:"dp"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Timestamp     int64   `json:"t"`
}

// Candles is the Finnhub stock candle payload. Status is "ok" or "no_data".
type Candles struct {
	Close     []float64 `json:"c"`
	High      []float64 `json:"h"`
	Low       []float64 `json:"l"`
	Open      []float64 `json:"o"`
	Volume    []float64 `json:"v"`
	Timestamp []int64   `json:"t"`
	Status    string    `json:"s"`
}

// SearchResponse is the Finnhub symbol lookup payload.
type SearchResponse struct {
	Count  int `json:"count"`
	Result []struct {
		Description   string `json:"description"`
		DisplaySymbol string `json:"displaySymbol"`
		Symbol        string `json:"symbol"`
		Type          string `json:"type"`
	} `json:"result"`
}

// GetQuote retrieves the current quote for a symbol.
func (c *FinnhubAPIClient) GetQuote(ctx context.Context, symbol string) (Quote, error) {
	var q Quote
	err := c.get(ctx, "/quote", url.Values{"symbol": []string{symbol}}, &q)
	return q, err
}

// GetCandles retrieves daily candles for a symbol between from and to
// (unix seconds).
func (c *FinnhubAPIClient) GetCandles(ctx context.Context, symbol, resolution string, from, to int64) (Candles, error) {
	var cs Candles
	err := c.get(ctx, "/stock/candle", url.Values{
		"symbol":     []string{symbol},
		"resolution": []string{resolution},
		"from":       []string{strconv.FormatInt(from, 10)},
		"to":         []string{strconv.FormatInt(to, 10)},
	}, &cs)
	return cs, err
}

// SearchSymbol looks up symbols matching a free-text query.
func (c *FinnhubAPIClient) SearchSymbol(ctx context.Context, query string) (SearchResponse, error) {
	var sr SearchResponse
	err := c.get(ctx, "/search", url.Values{"q": []string{query}}, &sr)
	return sr, err
}

func (c *FinnhubAPIClient) get(ctx context.Context, path string, params url.Values, out any) error {
	query := maps.Clone(c.query)
	for k, vs := range params {
		for _, v := range vs {
			query.Add(k, v)
		}
	}

	u := fmt.Sprintf("%s%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
