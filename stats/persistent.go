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

// Persistent computes a time-weighted average: a value registered at time t
// is assumed to hold constant until the next registration, so the mean
// weights each value by the duration it was in effect rather than by
// observation count (altitude, queue occupancy, link utilization).
type Persistent struct {
	observer

	mu            sync.Mutex
	haveLast      bool
	lastValue     float64
	lastTime      simtime.Time
	weightedSum   float64
	totalDuration simtime.Duration
	min           float64
	max           float64
}

// NewPersistent constructs a Persistent bound to clock and bus.
func NewPersistent(description string, clock kernel.SimClock, bus *eventbus.Bus, warmupTime simtime.Time, log logging.Logger, metrics *observability.KernelCollector) *Persistent {
	p := &Persistent{observer: newObserver(description, clock, bus, warmupTime, "persistent", log, metrics)}
	p.observer.registerFn = p.Register
	return p
}

// Register records value as holding from now until the next registration,
// if the clock has reached the warmup instant.
func (p *Persistent) Register(ctx context.Context, value float64) {
	if !p.pastWarmup() {
		return
	}
	now := p.clock.Now()

	p.mu.Lock()
	if p.haveLast {
		dt := simtime.Duration(float64(now) - float64(p.lastTime))
		p.weightedSum += p.lastValue * float64(dt)
		p.totalDuration += dt
		if value < p.min {
			p.min = value
		}
		if value > p.max {
			p.max = value
		}
	} else {
		p.min, p.max = value, value
	}
	p.lastValue = value
	p.lastTime = now
	p.haveLast = true
	p.mu.Unlock()

	p.publishObservation(ctx, value)
}

// Mean returns the time-weighted average of all values registered so far,
// integrated up to the most recent registration. It does not extrapolate
// the last value forward to the current clock time; call Register again (or
// Flush, at replication end) to fold in the final interval.
func (p *Persistent) Mean() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.totalDuration == 0 {
		if p.haveLast {
			return p.lastValue
		}
		return 0
	}
	return p.weightedSum / float64(p.totalDuration)
}

// Flush folds the interval from the last registration up to asOf into the
// running weighted sum, without changing the last-registered value. Callers
// typically invoke this once at end-of-replication so the final held value
// is credited for the time it remained in effect.
func (p *Persistent) Flush(asOf simtime.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.haveLast {
		return
	}
	dt := simtime.Duration(float64(asOf) - float64(p.lastTime))
	if dt <= 0 {
		return
	}
	p.weightedSum += p.lastValue * float64(dt)
	p.totalDuration += dt
	p.lastTime = asOf
}

// Min returns the smallest registered value, or 0 if none were registered.
func (p *Persistent) Min() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.min
}

// Max returns the largest registered value, or 0 if none were registered.
func (p *Persistent) Max() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.max
}
