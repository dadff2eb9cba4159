package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

// testClock wires a fake clock into a Window. Sleeps advance the clock
// instead of blocking.
func testClock(w *Window) (*time.Time, *[]time.Duration) {
	clock := time.Unix(1700000000, 0)
	var waits []time.Duration
	w.now = func() time.Time { return clock }
	w.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		clock = clock.Add(d)
		return nil
	}
	return &clock, &waits
}

func TestAcquireUnderQuota(t *testing.T) {
	w := New(3, time.Second, 0)
	_, waits := testClock(w)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := w.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
	}
	if len(*waits) != 0 {
		t.Fatalf("expected no waits, got %v", *waits)
	}
	if got := w.InWindow(); got != 3 {
		t.Fatalf("in window = %d, want 3", got)
	}
}

func TestAcquireWaitsAtCapacity(t *testing.T) {
	w := New(2, time.Second, 100*time.Millisecond)
	_, waits := testClock(w)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := w.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d: %v", i, err)
		}
		if got := w.InWindow(); got > 2 {
			t.Fatalf("quota exceeded after acquire %d: %d in window", i, got)
		}
	}
	if len(*waits) == 0 {
		t.Fatalf("expected at least one wait at capacity")
	}
	for i, d := range *waits {
		if d <= 0 {
			t.Fatalf("wait %d = %v, want > 0", i, d)
		}
	}
	if got := w.Total(); got != 5 {
		t.Fatalf("total = %d, want 5", got)
	}
}

func TestAcquireContextCancelled(t *testing.T) {
	w := New(1, time.Second, 0)
	clock := time.Unix(1700000000, 0)
	w.now = func() time.Time { return clock }
	w.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	ctx := context.Background()
	if err := w.Acquire(ctx); err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	err := w.Acquire(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := w.Total(); got != 1 {
		t.Fatalf("cancelled acquire must not record, total = %d", got)
	}
}

func TestInWindowPrunes(t *testing.T) {
	w := New(2, time.Second, 0)
	clock, _ := testClock(w)
	ctx := context.Background()
	if err := w.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := w.Acquire(ctx); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	*clock = clock.Add(2 * time.Second)
	if got := w.InWindow(); got != 0 {
		t.Fatalf("in window = %d, want 0 after expiry", got)
	}
	if got := w.Total(); got != 2 {
		t.Fatalf("total = %d, want 2", got)
	}
}
