// Package eventbus implements the publish/subscribe mechanism the kernel and
// the statistics observers use to exchange typed, optionally time-stamped
// events. Dispatch is synchronous and runs on the publisher's goroutine, by
// design: the kernel's single-threaded cooperative model (a subscriber may
// schedule or cancel kernel events while handling a notification) requires
// that a dispatch pass complete exactly as described before control returns
// to the kernel, which rules out the buffered/async channel fan-out used by
// general-purpose event buses.
package eventbus

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/signalsfoundry/constellation-simulator/internal/logging"
)

// Type identifies one of a closed set of event kinds. Types are compared by
// identity (the embedded id), with name retained only for logging.
type Type struct {
	id   uint64
	name string
}

// String returns the type's interned name.
func (t Type) String() string { return t.name }

var typeSeq uint64

// NewType interns a new, distinct event type. Call it from package-level
// var declarations only; every Type in the system should have exactly one
// owner package (kernel, stats, ...).
func NewType(name string) Type {
	return Type{id: atomic.AddUint64(&typeSeq, 1), name: name}
}

// Strength controls whether a subscription keeps its handler reachable from
// the bus's point of view. Go has no language-level weak references, so a
// WeakRef subscription instead carries an IsAlive probe the bus consults
// before every dispatch and prunes lazily once it reports false.
type Strength int

const (
	StrongRef Strength = iota
	WeakRef
)

// Event is a single published notification. Timestamp is nil for untimed
// events; a timed event carries a numeric (simtime.Time or float64) instant.
type Event struct {
	Type      Type
	Payload   any
	Timestamp any
}

// NewEvent constructs an untimed event.
func NewEvent(t Type, payload any) Event {
	return Event{Type: t, Payload: payload}
}

// NewTimedEvent constructs a timed event. ts is typically a simtime.Time but
// is accepted as `any` so subscribers can apply their own numeric projection
// (see stats.NumericTimestamp).
func NewTimedEvent(t Type, payload any, ts any) Event {
	return Event{Type: t, Payload: payload, Timestamp: ts}
}

type subscription struct {
	id       uint64
	typ      Type
	strength Strength
	fn       func(Event)
	isAlive  func() bool
}

// Subscription is an opaque handle returned by Subscribe, usable with
// Unsubscribe.
type Subscription struct {
	id  uint64
	typ Type
}

// Bus is a closed-type-set, registration-order publish/subscribe hub.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Type][]*subscription
	nextID uint64
	log    logging.Logger
}

// New constructs an empty bus. A nil logger defaults to a no-op logger.
func New(log logging.Logger) *Bus {
	if log == nil {
		log = logging.Noop()
	}
	return &Bus{subs: make(map[Type][]*subscription), log: log}
}

// Subscribe registers fn to be called, in registration order, for every
// event published with type t. isAlive is consulted before each dispatch
// when strength is WeakRef and may be nil for StrongRef subscriptions.
func (b *Bus) Subscribe(t Type, strength Strength, isAlive func() bool, fn func(Event)) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &subscription{id: b.nextID, typ: t, strength: strength, fn: fn, isAlive: isAlive}
	b.subs[t] = append(b.subs[t], sub)
	return Subscription{id: sub.id, typ: t}
}

// Unsubscribe removes a previously registered subscription. It is safe to
// call from within a notification callback for the same or a different
// event type; it never affects a dispatch pass already in flight because
// Publish iterates over a snapshot taken before the first callback runs.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.subs[sub.typ]
	for i, s := range list {
		if s.id == sub.id {
			b.subs[sub.typ] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish dispatches e to every live subscriber of e.Type, in registration
// order. A subscriber that panics or is otherwise faulty is isolated: the
// fault is logged and dispatch continues with the remaining subscribers.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	live := b.subs[e.Type]
	snapshot := make([]*subscription, len(live))
	copy(snapshot, live)
	b.mu.RUnlock()

	var dead []uint64
	for _, s := range snapshot {
		if s.strength == WeakRef && s.isAlive != nil && !s.isAlive() {
			dead = append(dead, s.id)
			continue
		}
		b.dispatchOne(ctx, s, e)
	}
	if len(dead) > 0 {
		b.pruneDead(e.Type, dead)
	}
}

func (b *Bus) dispatchOne(ctx context.Context, s *subscription, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn(ctx, "eventbus: subscriber fault", logging.String("event_type", e.Type.name), logging.Any("panic", r))
		}
	}()
	s.fn(e)
}

func (b *Bus) pruneDead(t Type, deadIDs []uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	dead := make(map[uint64]bool, len(deadIDs))
	for _, id := range deadIDs {
		dead[id] = true
	}
	list := b.subs[t]
	kept := list[:0]
	for _, s := range list {
		if !dead[s.id] {
			kept = append(kept, s)
		}
	}
	b.subs[t] = kept
}
