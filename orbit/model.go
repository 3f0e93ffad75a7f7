package orbit

import (
	"context"
	"fmt"
	"time"

	"github.com/signalsfoundry/constellation-simulator/eventbus"
	"github.com/signalsfoundry/constellation-simulator/internal/logging"
	"github.com/signalsfoundry/constellation-simulator/internal/observability"
	"github.com/signalsfoundry/constellation-simulator/kernel"
	"github.com/signalsfoundry/constellation-simulator/simtime"
	"github.com/signalsfoundry/constellation-simulator/stats"
)

// AltitudeSample is the application-chosen event type the model's tick
// action publishes altitude observations on, exercising the bus-intake
// path an observer may opt into instead of being called directly (see
// stats.observer.Subscribe).
var AltitudeSample = eventbus.NewType("orbit.altitude_sample")

// Model is the satellite-visibility reference model: one satellite, one
// ground station, propagated on a fixed tick and measured into a Registry.
// It implements kernel.Model and additionally exposes the Simulator/Registry
// accessors a surrounding application needs to drive a run and read its
// results (see kernel.Model's doc comment on why the kernel itself does not
// depend on these).
type Model struct {
	sim          *kernel.Simulator
	log          logging.Logger
	metrics      *observability.KernelCollector
	epoch        time.Time
	tickInterval simtime.Duration

	satellite *Satellite
	station   GroundStation

	registry  *stats.Registry
	altitude  *stats.Persistent
	elevation *stats.Tally
}

// NewModel constructs a Model bound to sim. epoch is the wall-clock instant
// that corresponds to simtime.Zero, used to translate logical simulation
// time into the calendar dates SGP4 propagation requires. tickInterval must
// be positive.
func NewModel(sim *kernel.Simulator, epoch time.Time, tickInterval simtime.Duration, sat *Satellite, station GroundStation, log logging.Logger, metrics *observability.KernelCollector) *Model {
	if log == nil {
		log = logging.Noop()
	}
	return &Model{
		sim:          sim,
		log:          log,
		metrics:      metrics,
		epoch:        epoch,
		tickInterval: tickInterval,
		satellite:    sat,
		station:      station,
	}
}

// Simulator returns the kernel driving this model.
func (m *Model) Simulator() *kernel.Simulator { return m.sim }

// OutputStatistics returns the model's observer registry, usable once
// ConstructModel has run.
func (m *Model) OutputStatistics() *stats.Registry { return m.registry }

// ConstructModel builds the statistics registry under the bound
// replication's context and schedules the first propagation tick. It is
// invoked exactly once by Simulator.Initialize, after the kernel has cleared
// its event list and scheduled the warmup and end-of-replication events, and
// with the kernel's run-state lock released (see kernel.Simulator.Initialize),
// so it is free to call the locking Simulator.ScheduleEvent directly.
func (m *Model) ConstructModel(ctx context.Context) error {
	repl, ok := m.sim.Replication()
	if !ok {
		return fmt.Errorf("orbit: ConstructModel called before Initialize bound a replication")
	}
	if repl.Context == nil {
		return fmt.Errorf("orbit: replication has no context to bind statistics under")
	}

	m.registry = stats.NewRegistry(repl.Context, m.log)
	m.altitude = m.registry.NewPersistent("satellite.altitude_km", m.sim, m.sim.Bus(), repl.WarmupTime, m.metrics)
	m.elevation = m.registry.NewTally("station.elevation_deg", m.sim, m.sim.Bus(), repl.WarmupTime, m.metrics)

	// Altitude is delivered through the bus rather than called directly,
	// exercising an observer's optional application-chosen subscription;
	// elevation is registered straight from tick below.
	m.altitude.Subscribe(AltitudeSample, eventbus.StrongRef)

	// An observer built before its replication's warmup instant defers its
	// TIMED_INITIALIZED_EVENT until WARMUP_EVENT fires rather than stamping
	// it with this construction instant (see observer.InitializeOrDeferToWarmup).
	m.altitude.InitializeOrDeferToWarmup(ctx)
	m.elevation.InitializeOrDeferToWarmup(ctx)

	_, err := m.sim.ScheduleEvent(ctx, repl.StartTime, 0, m.tick)
	return err
}

// tick propagates the satellite to the current simulation instant, folds the
// resulting altitude and elevation into the model's observers, and
// reschedules itself tickInterval later.
func (m *Model) tick(ctx context.Context, k kernel.Kernel) error {
	now := k.Now()
	wallClock := m.epoch.Add(time.Duration(float64(now) * float64(time.Second)))

	pos := m.satellite.Propagate(wallClock)
	m.sim.Bus().Publish(ctx, eventbus.NewTimedEvent(AltitudeSample, pos.Altitude(), now))
	m.elevation.Register(ctx, ElevationDegrees(m.station.Position, pos))

	_, err := k.ScheduleEventRel(ctx, m.tickInterval, 0, m.tick)
	return err
}

var _ kernel.Model = (*Model)(nil)
