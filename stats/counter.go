package stats

import (
	"context"
	"sync"

	"github.com/signalsfoundry/constellation-simulator/eventbus"
	"github.com/signalsfoundry/constellation-simulator/internal/logging"
	"github.com/signalsfoundry/constellation-simulator/internal/observability"
	"github.com/signalsfoundry/constellation-simulator/kernel"
	"github.com/signalsfoundry/constellation-simulator/simtime"
)

// Counter accumulates a running integer total, incremented or decremented by
// arbitrary deltas (queue depth, active-link count, and similar "how many
// right now" quantities).
type Counter struct {
	observer

	mu    sync.Mutex
	total int64
}

// NewCounter constructs a Counter bound to clock and bus.
func NewCounter(description string, clock kernel.SimClock, bus *eventbus.Bus, warmupTime simtime.Time, log logging.Logger, metrics *observability.KernelCollector) *Counter {
	c := &Counter{observer: newObserver(description, clock, bus, warmupTime, "counter", log, metrics)}
	c.observer.registerFn = func(ctx context.Context, value float64) { c.Increment(ctx, int64(value)) }
	return c
}

// Increment adds delta (which may be negative) to the running total if the
// clock has reached the warmup instant, then publishes the new total as an
// observation.
func (c *Counter) Increment(ctx context.Context, delta int64) {
	if !c.pastWarmup() {
		return
	}
	c.mu.Lock()
	c.total += delta
	total := c.total
	c.mu.Unlock()

	c.publishObservation(ctx, total)
}

// Count returns the current running total.
func (c *Counter) Count() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total
}
