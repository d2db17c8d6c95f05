package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// maxWaitRounds bounds the prune-sleep-recheck loop so a starved caller
// cannot spin forever when many goroutines contend for the same slot.
const maxWaitRounds = 50

// SlidingWindow admits at most limit requests per window (one second for
// provider budgets). A caller over budget sleeps until the oldest in-window
// stamp ages out and re-checks, which serializes bursts instead of
// rejecting them.
type SlidingWindow struct {
	limit  int
	window time.Duration

	mu     sync.Mutex
	stamps []time.Time
	now    func() time.Time
}

// PerSecond returns a limiter admitting n requests per sliding second.
// n <= 0 disables limiting.
func PerSecond(n int) *SlidingWindow {
	return New(n, time.Second)
}

func New(limit int, window time.Duration) *SlidingWindow {
	if window <= 0 {
		window = time.Second
	}
	return &SlidingWindow{limit: limit, window: window, now: time.Now}
}

// Wait blocks until a request slot is available or ctx is canceled.
func (l *SlidingWindow) Wait(ctx context.Context) error {
	if l == nil || l.limit <= 0 {
		return nil
	}
	for round := 0; round < maxWaitRounds; round++ {
		l.mu.Lock()
		now := l.now()
		l.prune(now)
		if len(l.stamps) < l.limit {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}
		// Remaining life of the oldest stamp still in the window.
		wait := l.stamps[0].Add(l.window).Sub(now)
		l.mu.Unlock()
		if wait <= 0 {
			wait = time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return fmt.Errorf("ratelimit: no slot after %d rounds", maxWaitRounds)
}

// prune drops stamps older than the window. Callers hold l.mu.
func (l *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
