package kernel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/signalsfoundry/constellation-simulator/eventbus"
	"github.com/signalsfoundry/constellation-simulator/internal/logging"
	"github.com/signalsfoundry/constellation-simulator/internal/observability"
	"github.com/signalsfoundry/constellation-simulator/simtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrorStrategy governs what the run loop does when an event's Action
// returns an error (an EVENT_FAULT in the error-handling design).
type ErrorStrategy int

const (
	// WarnAndPause logs the fault and transitions to Stopping. It is the
	// zero value and therefore the default.
	WarnAndPause ErrorStrategy = iota
	// LogAndContinue logs the fault and keeps the run loop going.
	LogAndContinue
	// WarnAndEnd logs the fault and ends the replication immediately, as if
	// the end-of-replication event had fired.
	WarnAndEnd
)

func (s ErrorStrategy) String() string {
	switch s {
	case LogAndContinue:
		return "LOG_AND_CONTINUE"
	case WarnAndEnd:
		return "WARN_AND_END"
	default:
		return "WARN_AND_PAUSE"
	}
}

// RunState is the kernel's lifecycle state machine.
type RunState int

const (
	Initial RunState = iota
	Initialized
	Starting
	Started
	Stopping
	Stopped
	Ended
)

func (s RunState) String() string {
	switch s {
	case Initial:
		return "INITIAL"
	case Initialized:
		return "INITIALIZED"
	case Starting:
		return "STARTING"
	case Started:
		return "STARTED"
	case Stopping:
		return "STOPPING"
	case Stopped:
		return "STOPPED"
	case Ended:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// Simulator is the discrete-event kernel: it owns the event list, the
// current simulation time, and the replication under which a run executes.
//
// Two disjoint things in this file need the same lock discipline but cannot
// share one reentrant call path, because sync.Mutex is not reentrant:
//   - external callers (a model's setup code, a UI) calling the exported
//     ScheduleEvent/CancelEvent/Stop methods, which must take mu themselves;
//   - an Action's own body, invoked by the dispatcher while mu is already
//     held, which must reach the same scheduling logic WITHOUT taking mu
//     again.
//
// kernelView (defined at the bottom of this file) is the second path: a
// thin wrapper around the *Simulator that calls the *Locked methods directly. Both
// *Simulator and kernelView satisfy the Kernel interface, so an Action
// never needs to know which one it was handed.
type Simulator struct {
	mu sync.Mutex // guards runState, replication, events, runUntil*, stopRequested

	timeMu  sync.RWMutex // guards simTime only, mirroring timectrl's split lock
	simTime simtime.Time

	runState          RunState
	replication       *Replication
	events            *eventList
	runUntilTime      simtime.Time
	runUntilIncluding bool
	stopRequested     bool
	errorStrategy     ErrorStrategy

	bus     *eventbus.Bus
	log     logging.Logger
	metrics *observability.KernelCollector
	tracer  trace.Tracer
}

// Option configures a Simulator at construction time.
type Option func(*Simulator)

// WithErrorStrategy overrides the default WarnAndPause strategy.
func WithErrorStrategy(s ErrorStrategy) Option {
	return func(sim *Simulator) { sim.errorStrategy = s }
}

// WithLogger overrides the default no-op logger.
func WithLogger(log logging.Logger) Option {
	return func(sim *Simulator) { sim.log = log }
}

// WithMetrics attaches a KernelCollector; nil is safe and simply skips metric
// recording.
func WithMetrics(m *observability.KernelCollector) Option {
	return func(sim *Simulator) { sim.metrics = m }
}

// WithTracer overrides the default "kernel" tracer.
func WithTracer(t trace.Tracer) Option {
	return func(sim *Simulator) { sim.tracer = t }
}

// NewSimulator constructs a Simulator in the Initial state with an empty
// event list and a fresh bus. Call Initialize before scheduling anything.
func NewSimulator(opts ...Option) *Simulator {
	s := &Simulator{
		events:   newEventList(),
		runState: Initial,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bus == nil {
		s.bus = eventbus.New(s.log)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("kernel")
	}
	return s
}

// Bus returns the kernel's event bus. Safe to call concurrently with a run.
func (s *Simulator) Bus() *eventbus.Bus { return s.bus }

// State returns the current lifecycle state.
func (s *Simulator) State() RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runState
}

// Now returns the current simulation time. It never takes the run-state
// lock, so it is safe to call from within an Action that already holds it
// (via kernelView) as well as from any external goroutine.
func (s *Simulator) Now() simtime.Time {
	s.timeMu.RLock()
	defer s.timeMu.RUnlock()
	return s.simTime
}

func (s *Simulator) setTimeLocked(ctx context.Context, t simtime.Time) {
	s.timeMu.Lock()
	changed := simtime.Compare(s.simTime, t) != 0
	s.simTime = t
	s.timeMu.Unlock()
	if changed {
		s.publishTimedLocked(ctx, TimeChanged, nil, t)
	}
}

// Initialize clears the event list, binds the replication, schedules the
// reserved warmup and end-of-replication events, and invokes the model's
// ConstructModel exactly once. It fails with ErrIllegalState if a run is
// already starting, started, or stopping.
func (s *Simulator) Initialize(ctx context.Context, model Model, replication Replication) error {
	if err := replication.Validate(); err != nil {
		return err
	}

	s.mu.Lock()

	switch s.runState {
	case Starting, Started, Stopping:
		s.mu.Unlock()
		return ErrIllegalState
	}

	s.events.Clear()
	repl := replication
	s.replication = &repl
	s.runUntilTime = replication.EndTime
	s.runUntilIncluding = true
	s.stopRequested = false

	s.timeMu.Lock()
	s.simTime = replication.StartTime
	s.timeMu.Unlock()

	if _, err := s.scheduleLocked(ctx, replication.WarmupTime, warmupPriority, s.fireWarmup); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("schedule warmup event: %w", err)
	}
	if _, err := s.scheduleLocked(ctx, replication.EndTime, endPriority, s.fireEndReplication); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("schedule end-of-replication event: %w", err)
	}

	s.runState = Initialized
	s.mu.Unlock()

	// model.ConstructModel runs with mu released: a model's construction
	// routine schedules its own initial events through the public, locking
	// Simulator API (it is not handed a Kernel view), so the lock must not
	// be held here or that call would deadlock against itself.
	if model != nil {
		if err := model.ConstructModel(ctx); err != nil {
			return fmt.Errorf("construct model: %w", err)
		}
	}
	return nil
}

// Replication returns a copy of the replication bound by the most recent
// Initialize call. The second result is false if Initialize has never been
// called. A model's ConstructModel uses this to learn the warmup instant and
// the simcontext.Context its observers should bind under.
func (s *Simulator) Replication() (Replication, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replication == nil {
		return Replication{}, false
	}
	return *s.replication, true
}

func (s *Simulator) fireWarmup(ctx context.Context, _ Kernel) error {
	s.publishTimedLocked(ctx, Warmup, nil, s.currentTimeLocked())
	return nil
}

func (s *Simulator) fireEndReplication(ctx context.Context, _ Kernel) error {
	s.publishTimedLocked(ctx, EndReplication, nil, s.currentTimeLocked())
	s.events.Clear()
	s.runState = Ended
	return nil
}

// ScheduleEvent validates priority and t >= Now(), then inserts action into
// the event list under the run-state lock.
func (s *Simulator) ScheduleEvent(ctx context.Context, t simtime.Time, priority int16, action Action) (*ScheduledEvent, error) {
	if priority < MinPriority || priority > MaxPriority {
		return nil, ErrInvalidPriority
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(ctx, t, priority, action)
}

// ScheduleEventRel schedules action at Now()+delta.
func (s *Simulator) ScheduleEventRel(ctx context.Context, delta simtime.Duration, priority int16, action Action) (*ScheduledEvent, error) {
	if priority < MinPriority || priority > MaxPriority {
		return nil, ErrInvalidPriority
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := simtime.Add(s.currentTimeLocked(), delta)
	if err != nil {
		return nil, err
	}
	return s.scheduleLocked(ctx, t, priority, action)
}

// ScheduleEventNow schedules action at the current instant.
func (s *Simulator) ScheduleEventNow(ctx context.Context, priority int16, action Action) (*ScheduledEvent, error) {
	if priority < MinPriority || priority > MaxPriority {
		return nil, ErrInvalidPriority
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(ctx, s.currentTimeLocked(), priority, action)
}

// currentTimeLocked reads simTime. Called with mu held (by a public method
// or the dispatcher) but takes timeMu independently, since the two locks
// guard disjoint state.
func (s *Simulator) currentTimeLocked() simtime.Time {
	s.timeMu.RLock()
	defer s.timeMu.RUnlock()
	return s.simTime
}

func (s *Simulator) scheduleLocked(ctx context.Context, t simtime.Time, priority int16, action Action) (*ScheduledEvent, error) {
	if simtime.Compare(t, s.currentTimeLocked()) < 0 {
		return nil, ErrScheduleInPast
	}
	e := s.events.Add(t, priority, action)
	s.publishLocked(ctx, EventListChanged, nil)
	s.observeDepthLocked()
	return e, nil
}

// CancelEvent removes e from the event list, returning true iff it was
// present and Pending.
func (s *Simulator) CancelEvent(e *ScheduledEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(e)
}

func (s *Simulator) cancelLocked(e *ScheduledEvent) bool {
	ok := s.events.Remove(e)
	if ok {
		s.observeDepthLocked()
	}
	return ok
}

// Stop requests that the run loop stop after the event currently being
// dispatched, if any, finishes. Called from within an Action (via
// kernelView), the loop stops once that action returns. Called externally,
// Stop takes mu, which Run, RunUntil and Start hold for their whole loop, so
// it waits until the loop has returned; the next Run, RunUntil or Start
// clears the request on entry, and Step does not consult it.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopRequested = true
}

// Step advances the simulation by exactly one event: it pops the earliest
// pending event, advances the clock to its time (publishing TimeChanged if
// the time changed), and executes it. It is a no-op if the event list is
// empty.
func (s *Simulator) Step(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runState == Initial {
		return ErrIllegalState
	}
	if s.runState == Initialized {
		s.runState = Starting
	}
	_, err := s.stepLocked(ctx)
	if s.runState == Starting {
		s.runState = Started
	}
	return err
}

// stepLocked pops the earliest event (if any) and executes it, reporting
// whether anything was popped.
func (s *Simulator) stepLocked(ctx context.Context) (bool, error) {
	e := s.events.RemoveFirst()
	if e == nil {
		return false, nil
	}
	s.observeDepthLocked()

	s.setTimeLocked(ctx, e.Time())

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "kernel.step",
		trace.WithAttributes(
			attribute.Float64("event.time", float64(e.Time())),
			attribute.Int64("event.priority", int64(e.Priority())),
		),
	)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("kernel: event action panicked: %v", r)
			}
		}()
		return e.execute(ctx, kernelView{s})
	}()
	span.End()
	if s.metrics != nil {
		s.metrics.ObserveStep(time.Since(start))
	}

	if err != nil {
		s.onEventFaultLocked(ctx, e, err)
		return true, err
	}
	s.metrics.IncEventsProcessed("ok")
	return true, nil
}

func (s *Simulator) onEventFaultLocked(ctx context.Context, e *ScheduledEvent, err error) {
	s.metrics.IncEventsProcessed("fault")
	s.log.Warn(ctx, "kernel: event action returned an error",
		logging.String("strategy", s.errorStrategy.String()),
		logging.String("error", err.Error()),
	)
	switch s.errorStrategy {
	case LogAndContinue:
		// run loop keeps going
	case WarnAndEnd:
		s.publishTimedLocked(ctx, EndReplication, nil, s.currentTimeLocked())
		s.events.Clear()
		s.runState = Ended
	default: // WarnAndPause
		s.runState = Stopping
	}
}

// Run executes events until the event list is empty, the run-until bound is
// reached, or the replication ends.
func (s *Simulator) Run(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runLoopLocked(ctx)
}

// RunUntil overrides the run-until bound set by Initialize (the
// replication's EndTime, inclusive) before running.
func (s *Simulator) RunUntil(ctx context.Context, t simtime.Time, including bool) error {
	s.mu.Lock()
	s.runUntilTime = t
	s.runUntilIncluding = including
	err := s.runLoopLocked(ctx)
	s.mu.Unlock()
	return err
}

// Start is equivalent to Run, named to mirror the spec's start()/resume
// terminology: calling it again after a Stop-induced Stopped state resumes
// the run loop from where it left off.
func (s *Simulator) Start(ctx context.Context) error {
	return s.Run(ctx)
}

func (s *Simulator) runLoopLocked(ctx context.Context) error {
	if s.runState == Initial {
		return ErrIllegalState
	}

	s.stopRequested = false
	if s.runState == Initialized || s.runState == Stopped {
		s.runState = Starting
	}
	s.publishLocked(ctx, Start, nil)
	s.runState = Started

	var lastErr error
	for {
		if s.stopRequested {
			s.runState = Stopping
			break
		}
		if s.runState == Ended {
			break
		}

		first := s.events.First()
		if first == nil {
			s.setTimeLocked(ctx, s.runUntilTime)
			s.runState = Stopping
			break
		}

		cmp := simtime.Compare(first.Time(), s.runUntilTime)
		if cmp > 0 || (cmp == 0 && !s.runUntilIncluding) {
			s.setTimeLocked(ctx, s.runUntilTime)
			s.runState = Stopping
			break
		}

		if _, err := s.stepLocked(ctx); err != nil && s.errorStrategy != LogAndContinue {
			lastErr = err
		}
		if s.runState == Stopping || s.runState == Ended {
			break
		}
	}

	if s.runState == Stopping {
		s.runState = Stopped
		s.publishLocked(ctx, Stop, nil)
	}
	return lastErr
}

func (s *Simulator) publishLocked(ctx context.Context, t eventbus.Type, payload any) {
	s.bus.Publish(ctx, eventbus.NewEvent(t, payload))
}

func (s *Simulator) publishTimedLocked(ctx context.Context, t eventbus.Type, payload any, ts simtime.Time) {
	s.bus.Publish(ctx, eventbus.NewTimedEvent(t, payload, ts))
}

func (s *Simulator) observeDepthLocked() {
	if s.metrics != nil {
		s.metrics.SetEventListDepth(s.events.Len())
	}
}

// kernelView is the Kernel implementation handed to an Action's body during
// dispatch. Every method below assumes the caller's goroutine already holds
// s.mu (stepLocked does), so it calls the *Locked variants directly instead
// of the exported, locking *Simulator methods.
type kernelView struct{ s *Simulator }

func (k kernelView) Now() simtime.Time { return k.s.Now() }

func (k kernelView) ScheduleEvent(ctx context.Context, t simtime.Time, priority int16, action Action) (*ScheduledEvent, error) {
	if priority < MinPriority || priority > MaxPriority {
		return nil, ErrInvalidPriority
	}
	return k.s.scheduleLocked(ctx, t, priority, action)
}

func (k kernelView) ScheduleEventRel(ctx context.Context, delta simtime.Duration, priority int16, action Action) (*ScheduledEvent, error) {
	if priority < MinPriority || priority > MaxPriority {
		return nil, ErrInvalidPriority
	}
	t, err := simtime.Add(k.s.currentTimeLocked(), delta)
	if err != nil {
		return nil, err
	}
	return k.s.scheduleLocked(ctx, t, priority, action)
}

func (k kernelView) ScheduleEventNow(ctx context.Context, priority int16, action Action) (*ScheduledEvent, error) {
	if priority < MinPriority || priority > MaxPriority {
		return nil, ErrInvalidPriority
	}
	return k.s.scheduleLocked(ctx, k.s.currentTimeLocked(), priority, action)
}

func (k kernelView) CancelEvent(e *ScheduledEvent) bool { return k.s.cancelLocked(e) }

func (k kernelView) Stop() { k.s.stopRequested = true }

var _ Kernel = (*Simulator)(nil)
var _ Kernel = kernelView{}
