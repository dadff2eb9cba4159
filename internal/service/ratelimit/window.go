package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window enforces a provider-side quota of max requests per trailing
// duration. Callers Acquire before every outbound request; Acquire blocks
// until a slot is free inside the window. Stale timestamps are pruned on
// every check, so the stamp list never exceeds max entries.
type Window struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	safety time.Duration
	stamps []time.Time
	total  int

	// injectable for deterministic tests
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a window limiter. safety is added on top of the computed
// wait so a request landing exactly on the boundary stays inside quota.
func New(max int, window, safety time.Duration) *Window {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = 15 * time.Second
	}
	return &Window{
		max:    max,
		window: window,
		safety: safety,
		now:    time.Now,
		sleep:  sleepCtx,
	}
}

// Acquire blocks until a request slot is free, then records the request
// timestamp. Returns the context error if ctx ends while waiting. The
// lock is never held across a sleep.
func (w *Window) Acquire(ctx context.Context) error {
	for {
		w.mu.Lock()
		now := w.now()
		w.prune(now)
		if len(w.stamps) < w.max {
			w.stamps = append(w.stamps, now)
			w.total++
			w.mu.Unlock()
			return nil
		}
		wait := w.stamps[0].Add(w.window + w.safety).Sub(now)
		w.mu.Unlock()
		if wait <= 0 {
			continue
		}
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Total returns the number of requests granted since creation.
func (w *Window) Total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

// InWindow returns how many granted requests still count against the quota.
func (w *Window) InWindow() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.stamps)
}

// prune drops timestamps that aged out of the window. Caller holds the lock.
func (w *Window) prune(now time.Time) {
	cut := now.Add(-w.window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cut) {
		i++
	}
	if i > 0 {
		w.stamps = append([]time.Time(nil), w.stamps[i:]...)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
