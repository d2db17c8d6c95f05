package adapter

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wofare/edgar-filing-analyzer-sub000/internal/cache"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/health"
	"github.com/wofare/edgar-filing-analyzer-sub000/internal/provider"
)

type fakeProvider struct {
	name      string
	snap      *provider.Snapshot
	err       error
	search    []provider.SearchResult
	searchErr error

	mu    sync.Mutex
	calls []string // symbols requested, in order
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetPrice(_ context.Context, symbol, _ string) (*provider.Snapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	snap := f.snap.Clone()
	snap.Symbol = symbol
	snap.Provider = f.name
	return snap, nil
}

func (f *fakeProvider) Search(_ context.Context, _ string) ([]provider.SearchResult, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.search, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func okSnap(current, prevClose float64) *provider.Snapshot {
	change, pct := provider.Derive(current, prevClose)
	return &provider.Snapshot{
		Current:       current,
		PreviousClose: prevClose,
		Change:        change,
		ChangePercent: pct,
		Sparkline:     provider.NormalizeSparkline([]float64{current}, provider.SparklinePoints),
		LastUpdated:   time.Now().UTC(),
	}
}

func newAdapter(primary string, fallbacks []string, providers ...provider.Provider) *Adapter {
	ids := append([]string{primary}, fallbacks...)
	return New(Config{
		Primary:      primary,
		Fallbacks:    fallbacks,
		CacheTTL:     time.Minute,
		CacheEnabled: true,
	}, providers, cache.New(time.Minute, 0), health.New(ids...), nil)
}

func TestGetPriceData_PrimaryFailsFallbackSucceeds(t *testing.T) {
	a := &fakeProvider{name: "A", err: provider.Errorf("A", "ZZZ", "upstream 500")}
	b := &fakeProvider{name: "B", snap: okSnap(100.50, 99.00)}
	ad := newAdapter("A", []string{"B"}, a, b)

	snap, err := ad.GetPriceData(context.Background(), "ZZZ", Options{})
	if err != nil {
		t.Fatalf("GetPriceData: %v", err)
	}
	if snap.Provider != "B" || !snap.FallbackUsed {
		t.Fatalf("fallback not tagged: %+v", snap)
	}
	if snap.PrimaryError == "" || !strings.Contains(snap.PrimaryError, "upstream 500") {
		t.Fatalf("primaryError missing: %q", snap.PrimaryError)
	}
	if snap.Current != 100.50 || snap.Change != 1.50 {
		t.Fatalf("numbers wrong: current=%v change=%v", snap.Current, snap.Change)
	}
	if math.Abs(snap.ChangePercent-1.515151) > 0.001 {
		t.Fatalf("changePercent=%v, want ~1.515", snap.ChangePercent)
	}
	if len(snap.Sparkline) != provider.SparklinePoints {
		t.Fatalf("sparkline length %d", len(snap.Sparkline))
	}
}

func TestGetPriceData_CacheHitSkipsProviders(t *testing.T) {
	p := &fakeProvider{name: "A", snap: okSnap(10, 9)}
	ad := newAdapter("A", nil, p)

	if _, err := ad.GetPriceData(context.Background(), "AAPL", Options{}); err != nil {
		t.Fatal(err)
	}
	first := p.callCount()
	snap, err := ad.GetPriceData(context.Background(), "AAPL", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if p.callCount() != first {
		t.Fatalf("second call hit a provider: %d -> %d", first, p.callCount())
	}
	if snap.Current != 10 {
		t.Fatalf("cached snapshot wrong: %+v", snap)
	}
}

func TestGetPriceData_SkipCacheAlwaysFetches(t *testing.T) {
	p := &fakeProvider{name: "A", snap: okSnap(10, 9)}
	ad := newAdapter("A", nil, p)

	ctx := context.Background()
	if _, err := ad.GetPriceData(ctx, "AAPL", Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := ad.GetPriceData(ctx, "AAPL", Options{SkipCache: true}); err != nil {
		t.Fatal(err)
	}
	if p.callCount() != 2 {
		t.Fatalf("skipCache should refetch, calls=%d", p.callCount())
	}
}

func TestGetPriceData_ForceProviderIsEntireOrder(t *testing.T) {
	a := &fakeProvider{name: "A", snap: okSnap(10, 9)}
	b := &fakeProvider{name: "B", err: provider.Errorf("B", "AAPL", "down")}
	ad := newAdapter("A", []string{"B"}, a, b)

	_, err := ad.GetPriceData(context.Background(), "AAPL", Options{ForceProvider: "B", SkipCache: true})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("forced provider failure must not fail over, got %v", err)
	}
	if a.callCount() != 0 {
		t.Fatal("forced order must not touch other providers")
	}

	if _, err := ad.GetPriceData(context.Background(), "AAPL", Options{ForceProvider: "C"}); err == nil {
		t.Fatal("unknown forced provider must error")
	}
}

func TestGetPriceData_StaleCacheServedWhenAllFail(t *testing.T) {
	p := &fakeProvider{name: "A", err: provider.Errorf("A", "AAPL", "down")}
	ad := newAdapter("A", nil, p)

	seed := okSnap(42, 40)
	seed.Symbol = "AAPL"
	seed.Provider = "A"
	ad.cache.Set(cache.Key("AAPL", "1M"), seed, time.Nanosecond)
	time.Sleep(5 * time.Millisecond)

	snap, err := ad.GetPriceData(context.Background(), "AAPL", Options{})
	if err != nil {
		t.Fatalf("stale serving must not be an error path: %v", err)
	}
	if !strings.HasSuffix(snap.Provider, "-stale") {
		t.Fatalf("provider=%q, want -stale suffix", snap.Provider)
	}
	if !snap.FallbackUsed || snap.PrimaryError == "" {
		t.Fatalf("staleness markers missing: %+v", snap)
	}
	if snap.Current != 42 {
		t.Fatalf("stale data wrong: %+v", snap)
	}
	// The cached original must not have been mutated.
	orig, _ := ad.cache.GetStale(cache.Key("AAPL", "1M"))
	if orig.Provider != "A" || orig.FallbackUsed {
		t.Fatalf("cache entry was edited in place: %+v", orig)
	}
}

func TestGetPriceData_AllFailNoCacheEnumeratesProviders(t *testing.T) {
	a := &fakeProvider{name: "A", err: provider.Errorf("A", "AAPL", "timeout")}
	b := &fakeProvider{name: "B", err: provider.Errorf("B", "AAPL", "boom")}
	ad := newAdapter("A", []string{"B"}, a, b)

	_, err := ad.GetPriceData(context.Background(), "AAPL", Options{})
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want *FetchError, got %v", err)
	}
	if len(fe.Attempts) != 2 {
		t.Fatalf("attempts=%d, want 2", len(fe.Attempts))
	}
	msg := fe.Error()
	if !strings.Contains(msg, "A: timeout") || !strings.Contains(msg, "B: boom") {
		t.Fatalf("aggregate message incomplete: %s", msg)
	}
}

func TestGetPriceData_NotFoundStillTriesOtherProviders(t *testing.T) {
	a := &fakeProvider{name: "A", err: provider.NotFound("A", "OTC")}
	b := &fakeProvider{name: "B", snap: okSnap(5, 5)}
	ad := newAdapter("A", []string{"B"}, a, b)

	snap, err := ad.GetPriceData(context.Background(), "OTC", Options{})
	if err != nil {
		t.Fatalf("coverage differs across sources, must keep trying: %v", err)
	}
	if snap.Provider != "B" {
		t.Fatalf("want B's answer, got %+v", snap)
	}
}

func TestGetPriceData_UnhealthyPrimaryMovesLast(t *testing.T) {
	a := &fakeProvider{name: "A", err: provider.Errorf("A", "X", "down")}
	b := &fakeProvider{name: "B", snap: okSnap(10, 9)}
	ad := newAdapter("A", []string{"B"}, a, b)

	// Three failing rounds flip A unhealthy.
	for i := 0; i < 3; i++ {
		if _, err := ad.GetPriceData(context.Background(), "X", Options{SkipCache: true}); err != nil {
			t.Fatal(err)
		}
	}
	aCalls := a.callCount()

	// Next round should go straight to B and leave A untouched.
	if _, err := ad.GetPriceData(context.Background(), "X", Options{SkipCache: true}); err != nil {
		t.Fatal(err)
	}
	if a.callCount() != aCalls {
		t.Fatalf("unhealthy primary was still tried first: %d -> %d", aCalls, a.callCount())
	}

	st := ad.HealthStatus()["A"]
	if st.Healthy || st.ErrorCount < 3 {
		t.Fatalf("tracker state wrong: %+v", st)
	}
}

func TestFetchError_AllNotFound(t *testing.T) {
	fe := &FetchError{Symbol: "X", Attempts: []Attempt{
		{Provider: "A", Err: provider.NotFound("A", "X")},
		{Provider: "B", Err: provider.NotFound("B", "X")},
	}}
	if !fe.AllNotFound() {
		t.Fatal("want AllNotFound true")
	}
	fe.Attempts[1].Err = provider.Errorf("B", "X", "down")
	if fe.AllNotFound() {
		t.Fatal("mixed failures are not a pure not-found")
	}
}

func TestSearch_DedupesAcrossProvidersAndCaps(t *testing.T) {
	a := &fakeProvider{name: "A", search: []provider.SearchResult{
		{Symbol: "AAPL", Name: "Apple Inc."},
		{Symbol: "APLE", Name: "Apple Hospitality"},
	}}
	b := &fakeProvider{name: "B", search: []provider.SearchResult{
		{Symbol: "AAPL", Name: "APPLE INC"}, // dup, first provider wins
		{Symbol: "AAPL.SW", Name: "Apple (SIX)"},
	}}
	ad := newAdapter("A", []string{"B"}, a, b)

	got, err := ad.Search(context.Background(), "apple")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 unique, got %d: %+v", len(got), got)
	}
	if got[0].Name != "Apple Inc." {
		t.Fatalf("first provider's entry must win: %+v", got[0])
	}

	ad.cfg.SearchLimit = 2
	got, _ = ad.Search(context.Background(), "apple")
	if len(got) != 2 {
		t.Fatalf("cap not honored: %d", len(got))
	}
}

func TestSearch_ProviderErrorsAreSwallowed(t *testing.T) {
	a := &fakeProvider{name: "A", searchErr: provider.Errorf("A", "", "down")}
	b := &fakeProvider{name: "B", search: []provider.SearchResult{{Symbol: "TSLA", Name: "Tesla"}}}
	ad := newAdapter("A", []string{"B"}, a, b)

	got, err := ad.Search(context.Background(), "tesla")
	if err != nil {
		t.Fatalf("search is best effort: %v", err)
	}
	if len(got) != 1 || got[0].Symbol != "TSLA" {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestGetPriceData_ValidatesInput(t *testing.T) {
	ad := newAdapter("A", nil, &fakeProvider{name: "A", snap: okSnap(1, 1)})
	if _, err := ad.GetPriceData(context.Background(), "  ", Options{}); err == nil {
		t.Fatal("empty symbol must error")
	}

	snap, err := ad.GetPriceData(context.Background(), "aapl", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Symbol != "AAPL" {
		t.Fatalf("symbol not uppercased: %q", snap.Symbol)
	}
}

func TestGetPriceData_CanceledContextSkipsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &fakeProvider{name: "A", err: provider.Errorf("A", "X", "ctx gone")}
	b := &fakeProvider{name: "B", snap: okSnap(1, 1)}
	ad := newAdapter("A", []string{"B"}, a, b)

	cancel()
	_, err := ad.GetPriceData(ctx, "X", Options{SkipCache: true})
	if err == nil {
		t.Fatal("want error after cancellation")
	}
	if b.callCount() != 0 {
		t.Fatal("remaining providers must be skipped once ctx is done")
	}
}
