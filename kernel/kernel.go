package kernel

import (
	"context"

	"github.com/signalsfoundry/constellation-simulator/simtime"
)

// SimClock is the narrow read-only view of the kernel that statistics
// observers depend on for time-stamping their emitted events. Observers
// never hold the full Simulator, only this — ownership of the observer
// lives with the model's output-statistics collection, not the kernel.
type SimClock interface {
	Now() simtime.Time
}

// Kernel is the scheduling capability handed to an Action during its own
// execution. It is deliberately NOT the same thing as calling back into the
// public *Simulator methods: the dispatching goroutine already holds the
// Simulator's run-state lock while an action runs, and Go's sync.Mutex is
// not reentrant, so a second, unlocked implementation (kernelView) backs
// this interface during dispatch while *Simulator backs it everywhere else.
// Both satisfy this one interface, so an Action never needs to know which
// one it was given.
type Kernel interface {
	SimClock

	// ScheduleEvent inserts action to run at t with priority, requiring
	// t >= Now(). priority must be within [MinPriority, MaxPriority].
	ScheduleEvent(ctx context.Context, t simtime.Time, priority int16, action Action) (*ScheduledEvent, error)

	// ScheduleEventRel is equivalent to ScheduleEvent(ctx, Now()+delta, ...).
	ScheduleEventRel(ctx context.Context, delta simtime.Duration, priority int16, action Action) (*ScheduledEvent, error)

	// ScheduleEventNow is equivalent to ScheduleEvent(ctx, Now(), ...).
	ScheduleEventNow(ctx context.Context, priority int16, action Action) (*ScheduledEvent, error)

	// CancelEvent removes e from the event list. It returns true iff e was
	// present and Pending.
	CancelEvent(e *ScheduledEvent) bool

	// Stop requests that the run loop stop after the event currently being
	// dispatched (if any) finishes.
	Stop()
}

// Model is the minimal surface the kernel itself calls: ConstructModel is
// invoked exactly once, from Initialize, after the kernel has cleared its
// event list and scheduled the warmup/end-of-replication events. A Model
// typically also exposes accessors the surrounding application uses to wire
// up observers (a Simulator/SimClock and an output-statistics registry), but
// the kernel does not depend on those — they're defined alongside each
// concrete model (see package orbit) to avoid importing the stats package
// from kernel.
type Model interface {
	ConstructModel(ctx context.Context) error
}
