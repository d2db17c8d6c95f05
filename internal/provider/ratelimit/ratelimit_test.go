package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWait_UnderBudgetDoesNotBlock(t *testing.T) {
	l := PerSecond(3)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
	if el := time.Since(start); el > 100*time.Millisecond {
		t.Fatalf("under-budget waits should be immediate, took %v", el)
	}
}

func TestWait_OverBudgetDelaysRemainderOfWindow(t *testing.T) {
	l := New(2, 300*time.Millisecond)
	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	el := time.Since(start)
	// The third call should sleep roughly until the first stamp expires.
	if el < 200*time.Millisecond {
		t.Fatalf("third call admitted too early: %v", el)
	}
	if el > 600*time.Millisecond {
		t.Fatalf("third call delayed too long: %v", el)
	}
}

func TestWait_NeverDropsBurst(t *testing.T) {
	l := New(1, 50*time.Millisecond)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("burst call %d errored: %v", i, err)
		}
	}
}

func TestWait_ContextCancelAborts(t *testing.T) {
	l := New(1, 5*time.Second)
	if err := l.Wait(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx)
	if err == nil {
		t.Fatal("want context error, got nil")
	}
	if err != context.DeadlineExceeded {
		t.Fatalf("want DeadlineExceeded, got %v", err)
	}
}

func TestWait_DisabledLimiter(t *testing.T) {
	var l *SlidingWindow
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("nil limiter must be a no-op: %v", err)
	}
	if err := PerSecond(0).Wait(context.Background()); err != nil {
		t.Fatalf("zero-limit limiter must be a no-op: %v", err)
	}
}
