package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/cache"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/health"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultPeriod is the history window used when the caller gives none.
	DefaultPeriod = "1M"
	// DefaultSearchLimit caps unique search hits across providers.
	DefaultSearchLimit = 20
)

type Config struct {
	// Primary is tried first among healthy providers.
	Primary string
	// Fallbacks are tried in order after the primary.
	Fallbacks []string
	// CacheTTL for write-through entries; <= 0 uses the cache default.
	CacheTTL time.Duration
	// CacheEnabled gates both the fresh read path and the stale fallback.
	CacheEnabled bool
	// SearchLimit overrides DefaultSearchLimit when > 0.
	SearchLimit int
}

// Options modify a single GetPriceData call.
type Options struct {
	Period        string
	ForceProvider string
	SkipCache     bool
}

// Adapter is the public entry point: it computes the provider try-order
// from health, fails over in sequence, writes through to the cache, and
// falls back to stale cache entries as the last resort.
type Adapter struct {
	cfg       Config
	providers map[string]provider.Provider
	cache     *cache.Cache
	health    *health.Tracker
	log       *logrus.Entry
	sf        singleflight.Group
}

// New wires the adapter from its collaborators. The provider order in
// cfg (primary + fallbacks) must name providers present in the list.
func New(cfg Config, providers []provider.Provider, c *cache.Cache, tr *health.Tracker, log *logrus.Logger) *Adapter {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	byName := make(map[string]provider.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Adapter{
		cfg:       cfg,
		providers: byName,
		cache:     c,
		health:    tr,
		log:       log.WithField("component", "adapter"),
	}
}

// GetPriceData returns a snapshot for the symbol, preferring fresh cache,
// then providers in health order, then stale cache.
func (a *Adapter) GetPriceData(ctx context.Context, symbol string, opts Options) (*provider.Snapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, errors.New("symbol is required")
	}
	period := opts.Period
	if period == "" {
		period = DefaultPeriod
	}
	key := cache.Key(symbol, period)

	useCache := a.cfg.CacheEnabled && a.cache != nil
	if useCache && !opts.SkipCache {
		if snap, ok := a.cache.Get(key); ok {
			a.log.WithFields(logrus.Fields{"symbol": symbol, "period": period}).Debug("cache hit")
			return snap, nil
		}
	}

	// Coalesce concurrent identical lookups; bypass for forced or
	// cache-skipping calls, whose semantics are per-caller.
	if opts.ForceProvider == "" && !opts.SkipCache {
		v, err, _ := a.sf.Do(key, func() (any, error) {
			return a.fetch(ctx, symbol, period, key, opts)
		})
		if err != nil {
			return nil, err
		}
		return v.(*provider.Snapshot), nil
	}
	return a.fetch(ctx, symbol, period, key, opts)
}

func (a *Adapter) fetch(ctx context.Context, symbol, period, key string, opts Options) (*provider.Snapshot, error) {
	order, err := a.tryOrder(opts.ForceProvider)
	if err != nil {
		return nil, err
	}

	useCache := a.cfg.CacheEnabled && a.cache != nil
	var attempts []Attempt
	for _, id := range order {
		p := a.providers[id]
		snap, err := p.GetPrice(ctx, symbol, period)
		if err != nil {
			a.health.RecordFailure(id)
			a.log.WithFields(logrus.Fields{"provider": id, "symbol": symbol}).
				WithError(err).Warn("provider fetch failed")
			attempts = append(attempts, Attempt{Provider: id, Err: err})
			if ctx.Err() != nil {
				// Caller gave up; skip the remaining providers.
				break
			}
			continue
		}

		a.health.RecordSuccess(id)
		if id != a.cfg.Primary {
			snap = snap.Clone()
			snap.FallbackUsed = true
			if len(attempts) > 0 {
				snap.PrimaryError = attempts[len(attempts)-1].Err.Error()
			}
		}
		if useCache {
			a.cache.Set(key, snap, a.cfg.CacheTTL)
		}
		return snap, nil
	}

	fetchErr := &FetchError{Symbol: symbol, Attempts: attempts}

	// Stale data beats no data once every provider is exhausted.
	if useCache {
		if snap, ok := a.cache.GetStale(key); ok {
			a.log.WithFields(logrus.Fields{"symbol": symbol, "period": period}).
				Warn("all providers failed, serving stale cache")
			stale := snap.Clone()
			stale.Provider = strings.TrimSuffix(stale.Provider, "-stale") + "-stale"
			stale.FallbackUsed = true
			stale.PrimaryError = fetchErr.Error()
			return stale, nil
		}
	}
	return nil, fetchErr
}

// tryOrder computes the provider attempt order. A forced provider is
// the entire order; otherwise health decides, unhealthy last.
func (a *Adapter) tryOrder(force string) ([]string, error) {
	if force != "" {
		if _, ok := a.providers[force]; !ok {
			return nil, fmt.Errorf("unknown provider %q", force)
		}
		return []string{force}, nil
	}
	order := a.health.Ordered(a.cfg.Primary, a.cfg.Fallbacks)
	known := order[:0]
	for _, id := range order {
		if _, ok := a.providers[id]; ok {
			known = append(known, id)
		}
	}
	if len(known) == 0 {
		return nil, errors.New("no providers configured")
	}
	return known, nil
}

// Search fans the query across providers in health order, deduplicating
// by symbol until the limit is reached. Provider failures are swallowed;
// search is best effort.
func (a *Adapter) Search(ctx context.Context, query string) ([]provider.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query is required")
	}
	limit := a.cfg.SearchLimit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	seen := make(map[string]struct{}, limit)
	out := make([]provider.SearchResult, 0, limit)
	for _, id := range a.health.Ordered(a.cfg.Primary, a.cfg.Fallbacks) {
		p, ok := a.providers[id]
		if !ok {
			continue
		}
		results, err := p.Search(ctx, query)
		if err != nil {
			a.log.WithFields(logrus.Fields{"provider": id, "query": query}).
				WithError(err).Debug("search failed, continuing")
			if ctx.Err() != nil {
				break
			}
			continue
		}
		for _, r := range results {
			if _, dup := seen[r.Symbol]; dup {
				continue
			}
			seen[r.Symbol] = struct{}{}
			out = append(out, r)
			if len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// HealthStatus is a read-only snapshot of provider health for ops
// visibility.
func (a *Adapter) HealthStatus() map[string]health.Status {
	return a.health.Snapshot()
}
