// Package stats implements the kernel's statistics observers: Tally,
// Counter, and Persistent. Each accumulates observations registered by a
// model and emits timed bus events an observer's consumers (a UI, an
// exporter) can subscribe to, without the kernel itself ever depending on
// this package — ownership of an observer lives with the model's
// output-statistics collection (see Registry), and an observer holds only a
// borrowed kernel.SimClock back-reference for time-stamping.
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

// Bus event types published by observers.
var (
	ObservationAdded = eventbus.NewType("stats.observation_added")
	Initialized      = eventbus.NewType("stats.initialized")
)

// observer is the shared base embedded by Tally, Counter, and Persistent. It
// is not exported: callers interact with the concrete observer types, all of
// which expose Description/SimClock/Initialize per the spec's observer
// interface.
type observer struct {
	description string
	clock       kernel.SimClock
	bus         *eventbus.Bus
	warmupTime  simtime.Time
	kind        string
	log         logging.Logger
	metrics     *observability.KernelCollector

	// registerFn is bound by the concrete constructor (NewTally, NewCounter,
	// NewPersistent) to that type's own Register/Increment, so the shared
	// notify below can fold a bus-delivered observation into the right
	// accumulator without a virtual method call.
	registerFn func(ctx context.Context, value float64)

	subMu sync.Mutex
	subs  map[eventbus.Type]eventbus.Subscription
}

func newObserver(description string, clock kernel.SimClock, bus *eventbus.Bus, warmupTime simtime.Time, kind string, log logging.Logger, metrics *observability.KernelCollector) observer {
	if log == nil {
		log = logging.Noop()
	}
	return observer{
		description: description,
		clock:       clock,
		bus:         bus,
		warmupTime:  warmupTime,
		kind:        kind,
		log:         log,
		metrics:     metrics,
	}
}

// Description returns the observer's immutable name, also used by
// simcontext.BindObject when no explicit bind name is given.
func (o *observer) Description() string { return o.description }

// SimClock returns the observer's back-reference to the kernel's clock.
func (o *observer) SimClock() kernel.SimClock { return o.clock }

// Initialize publishes TIMED_INITIALIZED_EVENT with the current clock time.
// It does not clear the statistics the concrete observer has accumulated:
// observations registered before this call stay in its totals. Called either immediately from InitializeOrDeferToWarmup, or
// once on WARMUP_EVENT by notify when construction happened at or before
// the warmup instant.
func (o *observer) Initialize(ctx context.Context) {
	o.bus.Publish(ctx, eventbus.NewTimedEvent(Initialized, o.description, o.clock.Now()))
}

// InitializeOrDeferToWarmup applies the construction-time policy every
// observer follows: one built after its replication's warmup instant
// initializes immediately, since statistics accumulation has already begun;
// one built at or before warmup instead subscribes once to the kernel's
// WARMUP_EVENT and initializes (then unsubscribes) on receipt, so its
// TIMED_INITIALIZED_EVENT timestamp is the warmup instant rather than its
// own construction time.
func (o *observer) InitializeOrDeferToWarmup(ctx context.Context) {
	if simtime.Before(o.warmupTime, o.clock.Now()) {
		o.Initialize(ctx)
		return
	}
	o.Subscribe(kernel.Warmup, eventbus.StrongRef)
}

// Subscribe registers the observer's notify method against events of type t
// published on its bus, so observations (or the warmup signal) can be
// delivered without the application calling Register/Increment directly.
// An observer subscribes to at most one producer per event type; a second
// Subscribe for the same t replaces the first.
func (o *observer) Subscribe(t eventbus.Type, strength eventbus.Strength) {
	sub := o.bus.Subscribe(t, strength, nil, o.notify)
	o.subMu.Lock()
	if o.subs == nil {
		o.subs = make(map[eventbus.Type]eventbus.Subscription)
	}
	old, had := o.subs[t]
	o.subs[t] = sub
	o.subMu.Unlock()
	if had {
		o.bus.Unsubscribe(old)
	}
}

// Unsubscribe removes the observer's notify registration for t, if any.
func (o *observer) Unsubscribe(t eventbus.Type) {
	o.subMu.Lock()
	sub, ok := o.subs[t]
	if ok {
		delete(o.subs, t)
	}
	o.subMu.Unlock()
	if ok {
		o.bus.Unsubscribe(sub)
	}
}

// notify is the observer's bus callback, registered by Subscribe. On
// WARMUP_EVENT it unsubscribes and initializes. Otherwise it requires a
// numeric timestamp (a timed event, per the spec's notify contract) and a
// numeric payload, and delegates the payload value to the observer's own
// Register/Increment; anything else is logged and dropped, never causing
// notify itself to fail (per SUBSCRIBER_FAULT being non-fatal).
func (o *observer) notify(e eventbus.Event) {
	ctx := context.Background()
	if e.Type == kernel.Warmup {
		o.Unsubscribe(kernel.Warmup)
		o.Initialize(ctx)
		return
	}
	if _, ok := NumericTimestamp(e.Timestamp); !ok {
		o.log.Warn(ctx, "event not a TimedEvent", logging.String("event_type", e.Type.String()))
		return
	}
	value, ok := NumericTimestamp(e.Payload)
	if !ok {
		o.log.Warn(ctx, "stats: observation payload is not numeric", logging.String("event_type", e.Type.String()))
		return
	}
	o.registerFn(ctx, value)
}

// pastWarmup reports whether the clock has reached the warmup instant,
// i.e. whether an observation registered right now is eligible to
// accumulate. Per the glossary, warmup is "the instant at which statistics
// begin accumulating": registrations before it are accepted but dropped,
// never counted and never published, which is what keeps invariant 6 (no
// TIMED_OBSERVATION_ADDED_EVENT before warmupTime) true by construction.
func (o *observer) pastWarmup() bool {
	return !simtime.Before(o.clock.Now(), o.warmupTime)
}

func (o *observer) publishObservation(ctx context.Context, payload any) {
	if o.metrics != nil {
		o.metrics.IncObservations(o.kind)
	}
	o.bus.Publish(ctx, eventbus.NewTimedEvent(ObservationAdded, payload, o.clock.Now()))
}

// NumericTimestamp projects an eventbus.Event's Timestamp field to a plain
// float64, for subscribers that want to format or compare it without
// depending on simtime. It accepts simtime.Time, float64, float32, int and
// int64; ok is false for nil and for every other type.
func NumericTimestamp(ts any) (value float64, ok bool) {
	switch v := ts.(type) {
	case simtime.Time:
		return float64(v), true
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
