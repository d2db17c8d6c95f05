package health

import (
	"context"
	"sync"
	"time"
)

const (
	// DefaultThreshold is the consecutive-error count at which a provider
	// flips unhealthy.
	DefaultThreshold = 3
	// DefaultDecayInterval is how often counters decay toward recovery.
	DefaultDecayInterval = time.Minute
)

// Status is a read-only view of one provider's health.
type Status struct {
	Provider    string    `json:"provider"`
	Healthy     bool      `json:"healthy"`
	ErrorCount  int       `json:"errorCount"`
	LastChecked time.Time `json:"lastChecked"`
}

type state struct {
	errors      int
	lastChecked time.Time
}

// Tracker keeps a rolling consecutive-error count per provider and derives
// a healthy/unhealthy classification from it. Providers are registered once
// at startup and never removed; dropping a provider is a config decision,
// not a tracker one.
type Tracker struct {
	threshold int

	mu        sync.RWMutex
	providers map[string]*state
	now       func() time.Time // injectable clock for testing
}

func New(providerIDs ...string) *Tracker {
	return NewWithThreshold(DefaultThreshold, providerIDs...)
}

func NewWithThreshold(threshold int, providerIDs ...string) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	t := &Tracker{
		threshold: threshold,
		providers: make(map[string]*state, len(providerIDs)),
		now:       time.Now,
	}
	for _, id := range providerIDs {
		t.providers[id] = &state{}
	}
	return t
}

// RecordSuccess decrements the provider's error count (floor 0).
func (t *Tracker) RecordSuccess(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(id)
	if s.errors > 0 {
		s.errors--
	}
	s.lastChecked = t.now()
}

// RecordFailure increments the provider's error count.
func (t *Tracker) RecordFailure(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(id)
	s.errors++
	s.lastChecked = t.now()
}

// Healthy reports whether the provider is below the error threshold.
// Unknown providers are healthy: they have no recorded failures.
func (t *Tracker) Healthy(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.providers[id]
	return !ok || s.errors < t.threshold
}

// Ordered returns the provider try-order: healthy providers first with the
// primary prioritized, unhealthy providers appended afterward as last
// resort. The system degrades rather than halting when everything looks
// unhealthy.
func (t *Tracker) Ordered(primary string, fallbacks []string) []string {
	ids := make([]string, 0, 1+len(fallbacks))
	ids = append(ids, primary)
	for _, id := range fallbacks {
		if id != primary {
			ids = append(ids, id)
		}
	}

	healthy := make([]string, 0, len(ids))
	unhealthy := make([]string, 0, len(ids))
	for _, id := range ids {
		if t.Healthy(id) {
			healthy = append(healthy, id)
		} else {
			unhealthy = append(unhealthy, id)
		}
	}
	return append(healthy, unhealthy...)
}

// Decay decrements every non-zero error count by one, letting providers
// recover over time even without new calls.
func (t *Tracker) Decay() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range t.providers {
		if s.errors > 0 {
			s.errors--
		}
	}
}

// Run decays counters on a ticker until ctx is done. interval <= 0 uses the
// default one-minute interval.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultDecayInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Decay()
		}
	}
}

// Snapshot returns the current status of every registered provider.
func (t *Tracker) Snapshot() map[string]Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Status, len(t.providers))
	for id, s := range t.providers {
		out[id] = Status{
			Provider:    id,
			Healthy:     s.errors < t.threshold,
			ErrorCount:  s.errors,
			LastChecked: s.lastChecked,
		}
	}
	return out
}

// state returns the entry for id, registering it on first sight so calls
// against unconfigured providers (forceProvider) are still tracked.
// Callers hold t.mu.
func (t *Tracker) state(id string) *state {
	s, ok := t.providers[id]
	if !ok {
		s = &state{}
		t.providers[id] = s
	}
	return s
}
