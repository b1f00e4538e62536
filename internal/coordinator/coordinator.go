// Package coordinator drives the refresh loop: fetch, normalize, swap
// the latest snapshot, and notify listeners with the previous and
// current snapshots. Reads of the latest snapshot are lock free.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"hyperwatch/internal/account"
	"hyperwatch/internal/config"
	"hyperwatch/internal/observability"
)

// ErrNoData is returned by Latest before any refresh cycle has resolved.
var ErrNoData = errors.New("no account data yet")

// RefreshError is returned by Latest when the most recent cycle failed
// and no earlier snapshot exists to fall back to.
type RefreshError struct {
	Cause error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh failed: %v", e.Cause)
}

func (e *RefreshError) Unwrap() error { return e.Cause }

// Phase is the coordinator lifecycle state.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseFetching
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetching:
		return "fetching"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Fetcher produces one raw bundle per refresh cycle.
type Fetcher interface {
	Fetch(ctx context.Context) (*account.Bundle, error)
}

// Listener observes snapshot transitions. It is called after the latest
// snapshot has been swapped, from the cycle goroutine, with the previous
// snapshot (nil on the first success) and the current one.
type Listener func(previous, current *account.State)

// Coordinator owns the periodic refresh loop and the latest snapshot.
type Coordinator struct {
	fetcher Fetcher
	log     zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time

	latest atomic.Pointer[account.State]

	// mu guards phase, lastErr, interval and the listener list. Cycles are
	// serialized by cycleMu so listeners see transitions in order.
	mu        sync.Mutex
	phase     Phase
	lastErr   error
	interval  time.Duration
	listeners []Listener

	cycleMu sync.Mutex
}

// New creates a Coordinator with the given initial refresh interval.
func New(fetcher Fetcher, interval time.Duration, log zerolog.Logger, metrics *observability.Metrics) *Coordinator {
	c := &Coordinator{
		fetcher:  fetcher,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
		phase:    PhaseIdle,
		interval: interval,
	}
	if metrics != nil {
		metrics.RefreshInterval.Set(interval.Seconds())
	}
	return c
}

// Subscribe registers a listener for snapshot transitions. Must be called
// before Run starts.
func (c *Coordinator) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// Latest returns the most recent snapshot. Before the first cycle it
// returns ErrNoData; after a failed cycle with no earlier snapshot it
// returns a *RefreshError wrapping the cause.
func (c *Coordinator) Latest() (*account.State, error) {
	if s := c.latest.Load(); s != nil {
		return s, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastErr != nil {
		return nil, &RefreshError{Cause: c.lastErr}
	}
	return nil, ErrNoData
}

// Phase returns the current lifecycle phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Interval returns the current refresh interval.
func (c *Coordinator) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// SetInterval reconfigures the refresh cadence. The new interval takes
// effect when the next cycle is scheduled.
func (c *Coordinator) SetInterval(d time.Duration) error {
	if err := config.ValidateInterval(d); err != nil {
		return err
	}
	c.mu.Lock()
	c.interval = d
	c.mu.Unlock()
	if c.metrics != nil {
		c.metrics.RefreshInterval.Set(d.Seconds())
	}
	c.log.Info().Dur("interval", d).Msg("refresh interval updated")
	return nil
}

// RefreshNow runs one refresh cycle synchronously. Used for the initial
// refresh at startup and available to callers that cannot wait for the
// next scheduled cycle.
func (c *Coordinator) RefreshNow(ctx context.Context) error {
	return c.cycle(ctx)
}

// Run executes refresh cycles until ctx is cancelled. The interval is
// re-read after every cycle so SetInterval takes effect without restart.
func (c *Coordinator) Run(ctx context.Context) error {
	c.log.Info().Dur("interval", c.Interval()).Msg("refresh loop started")

	timer := time.NewTimer(c.Interval())
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("refresh loop stopped")
			return ctx.Err()
		case <-timer.C:
			if err := c.cycle(ctx); err != nil && !errors.Is(err, context.Canceled) {
				c.log.Error().Err(err).Msg("refresh cycle failed")
			}
			timer.Reset(c.Interval())
		}
	}
}

func (c *Coordinator) cycle(ctx context.Context) error {
	c.cycleMu.Lock()
	defer c.cycleMu.Unlock()

	c.setPhase(PhaseFetching)
	start := time.Now()

	bundle, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.mu.Lock()
		c.phase = PhaseFailed
		c.lastErr = err
		c.mu.Unlock()
		if c.metrics != nil {
			c.metrics.RefreshCycles.WithLabelValues("failure").Inc()
		}
		return err
	}

	now := c.now()
	current := account.Normalize(bundle, now)
	previous := c.latest.Swap(current)

	c.mu.Lock()
	c.phase = PhaseReady
	c.lastErr = nil
	listeners := c.listeners
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.RefreshCycles.WithLabelValues("success").Inc()
		c.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
		c.metrics.LastRefreshUnixtime.Set(float64(now.Unix()))
	}

	for _, l := range listeners {
		l(previous, current)
	}

	c.log.Debug().
		Dur("elapsed", time.Since(start)).
		Int("positions", len(current.Positions)).
		Int("vaults", len(current.Vaults)).
		Int("open_orders", len(current.OpenOrders)).
		Msg("refresh cycle complete")
	return nil
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}
