package kernel

import (
	"context"
	"errors"
	"testing"

	"github.com/signalsfoundry/constellation-simulator/eventbus"
	"github.com/signalsfoundry/constellation-simulator/kernel/simcontext"
	"github.com/signalsfoundry/constellation-simulator/simtime"
)

func newInitializedSimulator(t *testing.T, start, warmup, end simtime.Time) *Simulator {
	t.Helper()
	s := NewSimulator()
	repl := Replication{StartTime: start, WarmupTime: warmup, EndTime: end, Context: simcontext.New()}
	if err := s.Initialize(context.Background(), nil, repl); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return s
}

// S1: FIFO at tie. Three actions scheduled at the same (time, priority) run
// in registration order.
func TestScenarioS1FIFOAtTie(t *testing.T) {
	s := newInitializedSimulator(t, 0, 0, 10)
	ctx := context.Background()

	var order []string
	record := func(name string) Action {
		return func(context.Context, Kernel) error {
			order = append(order, name)
			return nil
		}
	}
	if _, err := s.ScheduleEvent(ctx, 5, NormalPriority, record("A")); err != nil {
		t.Fatalf("schedule A: %v", err)
	}
	if _, err := s.ScheduleEvent(ctx, 5, NormalPriority, record("B")); err != nil {
		t.Fatalf("schedule B: %v", err)
	}
	if _, err := s.ScheduleEvent(ctx, 5, NormalPriority, record("C")); err != nil {
		t.Fatalf("schedule C: %v", err)
	}

	if err := s.RunUntil(ctx, 5, true); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	want := []string{"A", "B", "C"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	if got := s.Now(); got != 5 {
		t.Fatalf("Now() = %v, want 5", got)
	}
}

// S2: priority tie-break. Higher priority at the same time fires first.
func TestScenarioS2PriorityTieBreak(t *testing.T) {
	s := newInitializedSimulator(t, 0, 0, 10)
	ctx := context.Background()

	var order []string
	record := func(name string) Action {
		return func(context.Context, Kernel) error {
			order = append(order, name)
			return nil
		}
	}
	if _, err := s.ScheduleEvent(ctx, 3, NormalPriority, record("X")); err != nil {
		t.Fatalf("schedule X: %v", err)
	}
	if _, err := s.ScheduleEvent(ctx, 3, NormalPriority+1, record("Y")); err != nil {
		t.Fatalf("schedule Y: %v", err)
	}

	if err := s.RunUntil(ctx, 3, true); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	want := []string{"Y", "X"}
	if len(order) != 2 || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

// S3: warmup fires before a user event scheduled at the same instant with
// the maximum user priority.
func TestScenarioS3WarmupFiresFirst(t *testing.T) {
	s := newInitializedSimulator(t, 0, 2, 10)
	ctx := context.Background()

	var order []string
	var warmupTimestamp simtime.Time
	s.Bus().Subscribe(Warmup, eventbus.StrongRef, nil, func(e eventbus.Event) {
		order = append(order, "warmup")
		if ts, ok := e.Timestamp.(simtime.Time); ok {
			warmupTimestamp = ts
		}
	})

	if _, err := s.ScheduleEvent(ctx, 2, MaxPriority, func(context.Context, Kernel) error {
		order = append(order, "user")
		return nil
	}); err != nil {
		t.Fatalf("schedule user event: %v", err)
	}

	if err := s.RunUntil(ctx, 2, true); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	want := []string{"warmup", "user"}
	if len(order) != 2 || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("order = %v, want %v", order, want)
	}
	if warmupTimestamp != 2 {
		t.Fatalf("warmup timestamp = %v, want 2", warmupTimestamp)
	}
}

// S4: the end-of-replication event fires after a user event scheduled at the
// same instant with the minimum user priority, after which the event list is
// empty and the kernel is Ended.
func TestScenarioS4EndFiresLast(t *testing.T) {
	s := newInitializedSimulator(t, 0, 0, 10)
	ctx := context.Background()

	var userRan bool
	if _, err := s.ScheduleEvent(ctx, 10, MinPriority, func(context.Context, Kernel) error {
		userRan = true
		return nil
	}); err != nil {
		t.Fatalf("schedule user event: %v", err)
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !userRan {
		t.Fatal("expected user event to run before end-of-replication")
	}
	if s.State() != Ended {
		t.Fatalf("State() = %v, want Ended", s.State())
	}
}

// S5: runUntil excluding the boundary instant leaves a same-instant event
// pending.
func TestScenarioS5RunUntilExcluding(t *testing.T) {
	s := newInitializedSimulator(t, 0, 0, 20)
	ctx := context.Background()

	var ranAt5, ranAt7 bool
	if _, err := s.ScheduleEvent(ctx, 5, NormalPriority, func(context.Context, Kernel) error {
		ranAt5 = true
		return nil
	}); err != nil {
		t.Fatalf("schedule at 5: %v", err)
	}
	ev7, err := s.ScheduleEvent(ctx, 7, NormalPriority, func(context.Context, Kernel) error {
		ranAt7 = true
		return nil
	})
	if err != nil {
		t.Fatalf("schedule at 7: %v", err)
	}

	if err := s.RunUntil(ctx, 7, false); err != nil {
		t.Fatalf("RunUntil: %v", err)
	}

	if !ranAt5 {
		t.Fatal("expected the t=5 event to have executed")
	}
	if ranAt7 {
		t.Fatal("expected the t=7 event to remain pending")
	}
	if got := s.Now(); got != 7 {
		t.Fatalf("Now() = %v, want 7", got)
	}
	if s.State() != Stopped {
		t.Fatalf("State() = %v, want Stopped", s.State())
	}
	if ev7.State() != Pending {
		t.Fatalf("ev7.State() = %v, want Pending", ev7.State())
	}
}

// S6: an event cancelled before its firing time never executes.
func TestScenarioS6Cancel(t *testing.T) {
	s := newInitializedSimulator(t, 0, 0, 10)
	ctx := context.Background()

	var ran bool
	target, err := s.ScheduleEvent(ctx, 4, NormalPriority, func(context.Context, Kernel) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("schedule target: %v", err)
	}

	if _, err := s.ScheduleEvent(ctx, 2, NormalPriority, func(ctx context.Context, k Kernel) error {
		if !k.CancelEvent(target) {
			t.Error("expected CancelEvent to report the target was pending")
		}
		return nil
	}); err != nil {
		t.Fatalf("schedule canceller: %v", err)
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if ran {
		t.Fatal("expected the cancelled event never to execute")
	}
	if target.State() != Cancelled {
		t.Fatalf("target.State() = %v, want Cancelled", target.State())
	}
}

func TestScheduleEventRejectsPast(t *testing.T) {
	s := newInitializedSimulator(t, 5, 5, 10)
	ctx := context.Background()
	if _, err := s.ScheduleEvent(ctx, 4, NormalPriority, func(context.Context, Kernel) error { return nil }); !errors.Is(err, ErrScheduleInPast) {
		t.Fatalf("err = %v, want ErrScheduleInPast", err)
	}
}

func TestScheduleEventRejectsInvalidPriority(t *testing.T) {
	s := newInitializedSimulator(t, 0, 0, 10)
	ctx := context.Background()
	if _, err := s.ScheduleEvent(ctx, 1, MaxPriority+1, func(context.Context, Kernel) error { return nil }); !errors.Is(err, ErrInvalidPriority) {
		t.Fatalf("err = %v, want ErrInvalidPriority", err)
	}
}

func TestInitializeRejectsWhileRunning(t *testing.T) {
	s := newInitializedSimulator(t, 0, 0, 10)
	ctx := context.Background()
	s.mu.Lock()
	s.runState = Started
	s.mu.Unlock()

	err := s.Initialize(ctx, nil, Replication{StartTime: 0, WarmupTime: 0, EndTime: 10, Context: simcontext.New()})
	if !errors.Is(err, ErrIllegalState) {
		t.Fatalf("err = %v, want ErrIllegalState", err)
	}
}

// Reentrant scheduling: an Action calls back into Kernel.ScheduleEvent from
// within its own execution, which must not deadlock (Go's sync.Mutex is not
// reentrant; kernelView exists precisely to make this safe).
func TestActionCanReentrantlyScheduleAndCancel(t *testing.T) {
	s := newInitializedSimulator(t, 0, 0, 100)
	ctx := context.Background()

	var secondRan bool
	if _, err := s.ScheduleEvent(ctx, 1, NormalPriority, func(ctx context.Context, k Kernel) error {
		_, err := k.ScheduleEvent(ctx, k.Now()+1, NormalPriority, func(context.Context, Kernel) error {
			secondRan = true
			return nil
		})
		return err
	}); err != nil {
		t.Fatalf("schedule first: %v", err)
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !secondRan {
		t.Fatal("expected the reentrantly-scheduled event to have run")
	}
}

// Monotone time invariant: across a run, Now() observed at each step is
// non-decreasing.
func TestInvariantMonotoneTime(t *testing.T) {
	s := newInitializedSimulator(t, 0, 0, 50)
	ctx := context.Background()

	var observed []simtime.Time
	for i := simtime.Time(1); i <= 5; i++ {
		i := i
		if _, err := s.ScheduleEvent(ctx, i, NormalPriority, func(ctx context.Context, k Kernel) error {
			observed = append(observed, k.Now())
			return nil
		}); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for i := 1; i < len(observed); i++ {
		if simtime.Compare(observed[i], observed[i-1]) < 0 {
			t.Fatalf("time went backwards: %v then %v", observed[i-1], observed[i])
		}
	}
}

func TestErrorStrategyLogAndContinueKeepsRunning(t *testing.T) {
	s := NewSimulator(WithErrorStrategy(LogAndContinue))
	ctx := context.Background()
	repl := Replication{StartTime: 0, WarmupTime: 0, EndTime: 10, Context: simcontext.New()}
	if err := s.Initialize(ctx, nil, repl); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var secondRan bool
	if _, err := s.ScheduleEvent(ctx, 1, NormalPriority, func(context.Context, Kernel) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("schedule faulting: %v", err)
	}
	if _, err := s.ScheduleEvent(ctx, 2, NormalPriority, func(context.Context, Kernel) error {
		secondRan = true
		return nil
	}); err != nil {
		t.Fatalf("schedule second: %v", err)
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !secondRan {
		t.Fatal("expected the run loop to continue past the faulting event")
	}
}

func TestErrorStrategyWarnAndPauseStopsRunning(t *testing.T) {
	s := NewSimulator() // default WarnAndPause
	ctx := context.Background()
	repl := Replication{StartTime: 0, WarmupTime: 0, EndTime: 10, Context: simcontext.New()}
	if err := s.Initialize(ctx, nil, repl); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var secondRan bool
	if _, err := s.ScheduleEvent(ctx, 1, NormalPriority, func(context.Context, Kernel) error {
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("schedule faulting: %v", err)
	}
	if _, err := s.ScheduleEvent(ctx, 2, NormalPriority, func(context.Context, Kernel) error {
		secondRan = true
		return nil
	}); err != nil {
		t.Fatalf("schedule second: %v", err)
	}

	if err := s.Run(ctx); err == nil {
		t.Fatal("expected Run to surface the fault")
	}
	if secondRan {
		t.Fatal("expected WarnAndPause to stop before the second event")
	}
	if s.State() != Stopped {
		t.Fatalf("State() = %v, want Stopped", s.State())
	}
}
