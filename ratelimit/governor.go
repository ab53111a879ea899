// Package ratelimit throttles outbound requests to a per-source hourly budget.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Window is the span over which the minute budget is enforced.
const Window = time.Minute

// MinHourlyLimit is the lowest hourly limit a source may be configured with.
const MinHourlyLimit = 60

// ErrInvalidHourlyLimit is returned when a governor is configured with a
// non-positive hourly limit.
var ErrInvalidHourlyLimit = errors.New("hourly limit must be positive")

// Clock abstracts time so tests can drive the governor deterministically.
type Clock interface {
	Now() time.Time
	// Sleep blocks for d or until ctx is done.
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return systemClock{}
}

// Governor admits at most MinuteBudget requests inside any 60-second span.
// A caller that would exceed the budget sleeps until the oldest admission in
// the window ages out. One Governor is shared by every fetcher of a source;
// its state is guarded by a single mutex and sleeping callers hold it, so
// waiters queue behind each other.
type Governor struct {
	mu     sync.Mutex
	clock  Clock
	budget int

	// admitted holds admission times inside the current window, oldest
	// first. Its first element is the window start.
	admitted []time.Time
}

// Option configures a Governor.
type Option func(*Governor)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(g *Governor) {
		g.clock = c
	}
}

// NewGovernor creates a governor for the given hourly request limit. The
// minute budget is hourlyLimit/60, and never less than one request.
func NewGovernor(hourlyLimit int, opts ...Option) (*Governor, error) {
	if hourlyLimit <= 0 {
		return nil, ErrInvalidHourlyLimit
	}

	g := &Governor{
		clock:  SystemClock(),
		budget: MinuteBudget(hourlyLimit),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g, nil
}

// MinuteBudget derives the per-minute budget from an hourly limit.
func MinuteBudget(hourlyLimit int) int {
	return max(hourlyLimit/60, 1)
}

// MinuteBudget returns the number of requests admitted per window.
func (g *Governor) MinuteBudget() int {
	return g.budget
}

// Acquire blocks until a request may be issued. It only returns an error when
// ctx is cancelled while waiting.
func (g *Governor) Acquire(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	g.expire(now)

	for len(g.admitted) >= g.budget {
		wait := g.admitted[0].Add(Window).Sub(now)
		if err := g.clock.Sleep(ctx, wait); err != nil {
			return err
		}
		now = g.clock.Now()
		g.expire(now)
	}

	g.admitted = append(g.admitted, now)
	return nil
}

// State reports the current window start and the number of requests admitted
// in it.
func (g *Governor) State() (windowStart time.Time, count int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expire(g.clock.Now())
	if len(g.admitted) == 0 {
		return time.Time{}, 0
	}
	return g.admitted[0], len(g.admitted)
}

// expire drops admissions that are a full window old.
func (g *Governor) expire(now time.Time) {
	n := 0
	for n < len(g.admitted) && now.Sub(g.admitted[n]) >= Window {
		n++
	}
	if n > 0 {
		g.admitted = append(g.admitted[:0], g.admitted[n:]...)
	}
}
