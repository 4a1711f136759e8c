package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	t.Parallel()

	// 10 requests per second = 100ms interval, burst 1.
	l := New(Config{DefaultRPS: 10, DefaultBurst: 1})
	ctx := context.Background()

	if _, err := l.Wait(ctx, "gmail.com"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	if _, err := l.Wait(ctx, "gmail.com"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_DifferentKeys(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1, DefaultBurst: 1})
	ctx := context.Background()

	if _, err := l.Wait(ctx, "a.com"); err != nil {
		t.Fatal(err)
	}

	// Key B should not be blocked by A.
	waited, err := l.Wait(ctx, "b.com")
	if err != nil {
		t.Fatal(err)
	}
	if waited > 50*time.Millisecond {
		t.Errorf("key b blocked unexpectedly for %v", waited)
	}
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1})
	if _, err := l.Wait(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := l.Wait(ctx, ""); err == nil {
		t.Fatal("expected context error while waiting for a token")
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	for i := 0; i < 100; i++ {
		if _, err := l.Wait(context.Background(), "x"); err != nil {
			t.Fatal(err)
		}
	}
}
