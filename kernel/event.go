package kernel

import (
	"context"

	"github.com/signalsfoundry/constellation-simulator/simtime"
)

// State is the lifecycle of a ScheduledEvent.
type State int

const (
	// Pending events sit in the event list, eligible to be popped and run.
	Pending State = iota
	// Executed events have run exactly once and are no longer in the list.
	Executed
	// Cancelled events were removed via CancelEvent before they could run.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "PENDING"
	case Executed:
		return "EXECUTED"
	case Cancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Action is a deferred, nullary-from-the-caller's-perspective invocation
// bound to a ScheduledEvent. It receives the Kernel capability needed to
// schedule or cancel further events, or request a stop, from within its own
// execution (see Kernel for why this is a capability argument rather than a
// stored reference to the Simulator: the dispatching goroutine already holds
// the run-state lock, and Go mutexes are not reentrant).
type Action func(ctx context.Context, k Kernel) error

// ScheduledEvent is a deferred invocation with an absolute firing time and
// priority. An event in an event list is always Pending; once popped for
// execution it transitions to Executed (or, if cancelled beforehand, to
// Cancelled) and is never dispatched again. Clearing the list drops its
// events without changing their state, so a cleared event stays Pending but
// is no longer a member and is never dispatched.
type ScheduledEvent struct {
	time     simtime.Time
	priority int16
	seq      uint64
	action   Action
	state    State
	index    int // maintained by eventList; -1 when not a member of any list
}

// Time returns the event's absolute firing time.
func (e *ScheduledEvent) Time() simtime.Time { return e.time }

// Priority returns the event's tie-breaking priority.
func (e *ScheduledEvent) Priority() int16 { return e.priority }

// State returns the event's current lifecycle state.
func (e *ScheduledEvent) State() State { return e.state }

// execute runs the bound action exactly once. A second call fails with
// ErrAlreadyExecuted without invoking the action again.
func (e *ScheduledEvent) execute(ctx context.Context, k Kernel) error {
	if e.state != Pending {
		return ErrAlreadyExecuted
	}
	e.state = Executed
	if e.action == nil {
		return nil
	}
	return e.action(ctx, k)
}
