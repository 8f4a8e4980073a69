package resilience

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Window is a sliding-window call limiter: at most maxCalls calls may
// complete within any period. Callers block in Wait until the oldest call
// in the window expires.
type Window struct {
	mu       sync.Mutex
	maxCalls int
	period   time.Duration
	calls    []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// WindowOption configures a Window.
type WindowOption func(*Window)

// WithClock overrides the time source (for testing).
func WithClock(now func() time.Time) WindowOption {
	return func(w *Window) {
		w.now = now
	}
}

// WithSleeper overrides how the window blocks (for testing).
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) WindowOption {
	return func(w *Window) {
		w.sleep = sleep
	}
}

// NewWindow creates a Window allowing maxCalls per period. A non-positive
// maxCalls disables limiting.
func NewWindow(maxCalls int, period time.Duration, opts ...WindowOption) *Window {
	w := &Window{
		maxCalls: maxCalls,
		period:   period,
		now:      time.Now,
		sleep:    Sleep,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Wait blocks until another call fits in the window.
func (w *Window) Wait(ctx context.Context) error {
	if w == nil || w.maxCalls <= 0 {
		return ctx.Err()
	}

	for {
		w.mu.Lock()
		now := w.now()
		w.prune(now)
		if len(w.calls) < w.maxCalls {
			w.mu.Unlock()
			return nil
		}
		wait := w.period - now.Sub(w.calls[0])
		w.mu.Unlock()

		if wait <= 0 {
			continue
		}
		zap.L().Debug("rate limit: waiting for window",
			zap.Int("max_calls", w.maxCalls),
			zap.Duration("period", w.period),
			zap.Duration("wait", wait),
		)
		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Record appends a completed call to the window.
func (w *Window) Record() {
	if w == nil || w.maxCalls <= 0 {
		return
	}
	w.mu.Lock()
	w.calls = append(w.calls, w.now())
	w.mu.Unlock()
}

// Len returns the number of calls currently inside the window.
func (w *Window) Len() int {
	if w == nil || w.maxCalls <= 0 {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.prune(w.now())
	return len(w.calls)
}

// prune drops calls at least one period old. Caller holds mu.
func (w *Window) prune(now time.Time) {
	i := 0
	for i < len(w.calls) && now.Sub(w.calls[i]) >= w.period {
		i++
	}
	if i > 0 {
		w.calls = append(w.calls[:0], w.calls[i:]...)
	}
}

// Gate runs fn once the window admits it and records the call afterwards,
// whether or not fn failed.
func Gate[T any](ctx context.Context, w *Window, fn func(ctx context.Context) (T, error)) (T, error) {
	if err := w.Wait(ctx); err != nil {
		var zero T
		return zero, err
	}
	defer w.Record()
	return fn(ctx)
}
