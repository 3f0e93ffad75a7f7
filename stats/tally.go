package stats

import (
	"context"
	"math"
	"sync"

	"github.com/signalsfoundry/constellation-simulator/eventbus"
	"github.com/signalsfoundry/constellation-simulator/internal/logging"
	"github.com/signalsfoundry/constellation-simulator/internal/observability"
	"github.com/signalsfoundry/constellation-simulator/kernel"
	"github.com/signalsfoundry/constellation-simulator/simtime"
)

// Tally aggregates unweighted observations: count, sum, mean, sample
// variance, min, and max.
type Tally struct {
	observer

	mu    sync.Mutex
	count int64
	sum   float64
	sumSq float64
	min   float64
	max   float64
}

// NewTally constructs a Tally bound to clock and bus. warmupTime is the
// replication's warmup instant; registrations before it are accepted but do
// not accumulate or publish (see observer.pastWarmup).
func NewTally(description string, clock kernel.SimClock, bus *eventbus.Bus, warmupTime simtime.Time, log logging.Logger, metrics *observability.KernelCollector) *Tally {
	t := &Tally{observer: newObserver(description, clock, bus, warmupTime, "tally", log, metrics)}
	t.observer.registerFn = t.Register
	return t
}

// Register records value if the clock has reached the warmup instant, then
// publishes TIMED_OBSERVATION_ADDED_EVENT with the raw value as payload.
func (t *Tally) Register(ctx context.Context, value float64) {
	if !t.pastWarmup() {
		return
	}
	t.mu.Lock()
	t.count++
	t.sum += value
	t.sumSq += value * value
	if t.count == 1 {
		t.min, t.max = value, value
	} else {
		if value < t.min {
			t.min = value
		}
		if value > t.max {
			t.max = value
		}
	}
	t.mu.Unlock()

	t.publishObservation(ctx, value)
}

// Count returns the number of observations registered so far.
func (t *Tally) Count() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Sum returns the running sum of registered values.
func (t *Tally) Sum() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sum
}

// Mean returns the arithmetic mean, or 0 if no observations were registered.
func (t *Tally) Mean() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}

// Variance returns the sample variance (Bessel-corrected), or 0 for fewer
// than two observations.
func (t *Tally) Variance() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count < 2 {
		return 0
	}
	n := float64(t.count)
	mean := t.sum / n
	return (t.sumSq - n*mean*mean) / (n - 1)
}

// StdDev returns the sample standard deviation.
func (t *Tally) StdDev() float64 {
	return math.Sqrt(t.Variance())
}

// Min returns the smallest registered value, or 0 if none were registered.
func (t *Tally) Min() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.min
}

// Max returns the largest registered value, or 0 if none were registered.
func (t *Tally) Max() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.max
}
