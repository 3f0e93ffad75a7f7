package stats

import (
	"context"
	"sync"

	"github.com/signalsfoundry/constellation-simulator/eventbus"
	"github.com/signalsfoundry/constellation-simulator/internal/logging"
	"github.com/signalsfoundry/constellation-simulator/internal/observability"
	"github.com/signalsfoundry/constellation-simulator/kernel"
	"github.com/signalsfoundry/constellation-simulator/kernel/simcontext"
	"github.com/signalsfoundry/constellation-simulator/simtime"
)

// Registry is a model's output-statistics collection: the mutable set of
// observers a model constructs during ConstructModel, addressable by name
// and bound under a replication's "statistics/" subcontext. The kernel never
// holds a Registry directly (see kernel.Model); it is wired up and owned by
// the concrete model (see package orbit).
type Registry struct {
	mu      sync.RWMutex
	context *simcontext.Context
	log     logging.Logger

	tallies     map[string]*Tally
	counters    map[string]*Counter
	persistents map[string]*Persistent
}

// NewRegistry constructs a Registry that binds observers under
// root.LookupOrCreateSubContext("statistics").
func NewRegistry(root *simcontext.Context, log logging.Logger) *Registry {
	if log == nil {
		log = logging.Noop()
	}
	return &Registry{
		context:     root.LookupOrCreateSubContext("statistics"),
		log:         log,
		tallies:     make(map[string]*Tally),
		counters:    make(map[string]*Counter),
		persistents: make(map[string]*Persistent),
	}
}

// NewTally constructs, registers, and binds a Tally under name. Binding
// failure is logged and otherwise ignored (per the spec's error design,
// BINDING_FAILURE never aborts the simulation); the Tally is still returned
// usable.
func (r *Registry) NewTally(name string, clock kernel.SimClock, bus *eventbus.Bus, warmupTime simtime.Time, metrics *observability.KernelCollector) *Tally {
	t := NewTally(name, clock, bus, warmupTime, r.log, metrics)
	r.mu.Lock()
	r.tallies[name] = t
	r.mu.Unlock()
	r.bind(name, t)
	return t
}

// NewCounter constructs, registers, and binds a Counter under name.
func (r *Registry) NewCounter(name string, clock kernel.SimClock, bus *eventbus.Bus, warmupTime simtime.Time, metrics *observability.KernelCollector) *Counter {
	c := NewCounter(name, clock, bus, warmupTime, r.log, metrics)
	r.mu.Lock()
	r.counters[name] = c
	r.mu.Unlock()
	r.bind(name, c)
	return c
}

// NewPersistent constructs, registers, and binds a Persistent under name.
func (r *Registry) NewPersistent(name string, clock kernel.SimClock, bus *eventbus.Bus, warmupTime simtime.Time, metrics *observability.KernelCollector) *Persistent {
	p := NewPersistent(name, clock, bus, warmupTime, r.log, metrics)
	r.mu.Lock()
	r.persistents[name] = p
	r.mu.Unlock()
	r.bind(name, p)
	return p
}

func (r *Registry) bind(name string, obj any) {
	if err := r.context.BindObject(name, obj); err != nil {
		r.log.Warn(context.Background(), "stats: failed to bind observer in context",
			logging.String("observer", name),
			logging.String("error", err.Error()),
		)
	}
}

// Tally returns the named Tally, if one was registered.
func (r *Registry) Tally(name string) (*Tally, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tallies[name]
	return t, ok
}

// Counter returns the named Counter, if one was registered.
func (r *Registry) Counter(name string) (*Counter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.counters[name]
	return c, ok
}

// Persistent returns the named Persistent, if one was registered.
func (r *Registry) Persistent(name string) (*Persistent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.persistents[name]
	return p, ok
}

// Names returns the sorted names bound in the registry's "statistics"
// subcontext: every observer whose binding succeeded, regardless of kind.
func (r *Registry) Names() []string {
	return r.context.Names()
}
