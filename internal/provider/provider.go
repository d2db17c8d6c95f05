package provider

import (
	"context"
	"time"
)

// Snapshot is the normalized quote shape returned by all providers.
// It is constructed fresh on every successful fetch and never mutated
// afterwards; cached copies are replaced, not edited.
type Snapshot struct {
	Symbol        string    `json:"symbol"`
	Current       float64   `json:"current"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PreviousClose float64   `json:"previousClose"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	MarketCap     float64   `json:"marketCap,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated"`
	Sparkline     []float64 `json:"sparkline"`
	Provider      string    `json:"provider"`
	FallbackUsed  bool      `json:"fallbackUsed"`
	PrimaryError  string    `json:"primaryError,omitempty"`
}

// Clone returns a copy with its own sparkline slice, so callers can tag
// fallback/stale markers without touching the cached original.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := *s
	out.Sparkline = append([]float64(nil), s.Sparkline...)
	return &out
}

// SearchResult is one symbol/name pair from a provider's symbol search.
type SearchResult struct {
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type Provider interface {
	Name() string
	// GetPrice fetches the current quote plus enough history to build the
	// sparkline for the requested period (e.g. "1D", "1M", "1Y").
	GetPrice(ctx context.Context, symbol, period string) (*Snapshot, error)
	// Search looks up symbols matching a free-text query. Best effort.
	Search(ctx context.Context, query string) ([]SearchResult, error)
}
