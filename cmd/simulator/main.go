// Command simulator runs the satellite-visibility reference model to
// completion and prints its final statistics.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/signalsfoundry/constellation-simulator/eventbus"
	"github.com/signalsfoundry/constellation-simulator/internal/logging"
	"github.com/signalsfoundry/constellation-simulator/internal/observability"
	"github.com/signalsfoundry/constellation-simulator/kernel"
	"github.com/signalsfoundry/constellation-simulator/kernel/simcontext"
	"github.com/signalsfoundry/constellation-simulator/orbit"
	"github.com/signalsfoundry/constellation-simulator/simtime"
	"github.com/signalsfoundry/constellation-simulator/stats"
)

func main() {
	duration := flag.Duration("duration", 10*time.Minute, "simulated run length")
	warmup := flag.Duration("warmup", 2*time.Minute, "simulated warmup before statistics accumulate")
	tick := flag.Duration("tick", 30*time.Second, "propagation tick interval")
	tleLine1 := flag.String("tle1", "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990", "TLE line 1")
	tleLine2 := flag.String("tle2", "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760", "TLE line 2")
	metricsAddr := flag.String("metrics-addr", "", "if set, serve Prometheus metrics on this address instead of exiting")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	tracerShutdown, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Error(ctx, "failed to initialize tracing", logging.String("error", err.Error()))
		os.Exit(1)
	}
	defer observability.ShutdownWithTimeout(ctx, tracerShutdown, log)

	metrics, err := observability.NewKernelCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to construct metrics collector", logging.String("error", err.Error()))
		os.Exit(1)
	}

	sat, err := orbit.NewSatellite("sat-1", "LEO-Sat-1", *tleLine1, *tleLine2)
	if err != nil {
		log.Error(ctx, "failed to construct satellite", logging.String("error", err.Error()))
		os.Exit(1)
	}
	station := orbit.GroundStation{
		ID:       "gnd-1",
		Name:     "Equator-GS",
		Position: orbit.Vec3{X: orbit.EarthRadiusKm, Y: 0, Z: 0},
	}

	sim := kernel.NewSimulator(
		kernel.WithLogger(log),
		kernel.WithMetrics(metrics),
	)
	model := orbit.NewModel(sim, time.Now().UTC(), simtime.Duration(tick.Seconds()), sat, station, log, metrics)

	sim.Bus().Subscribe(stats.ObservationAdded, eventbus.StrongRef, nil, func(e eventbus.Event) {
		if ts, ok := stats.NumericTimestamp(e.Timestamp); ok {
			log.Debug(ctx, "observation", logging.Any("payload", e.Payload), logging.Any("t", ts))
		}
	})

	repl := kernel.Replication{
		StartTime:  simtime.Zero,
		WarmupTime: simtime.Time(warmup.Seconds()),
		EndTime:    simtime.Time(duration.Seconds()),
		Context:    simcontext.New(),
	}
	if err := sim.Initialize(ctx, model, repl); err != nil {
		log.Error(ctx, "failed to initialize replication", logging.String("error", err.Error()))
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go func() {
			if err := http.ListenAndServe(*metricsAddr, metrics.Handler()); err != nil {
				log.Error(ctx, "metrics server stopped", logging.String("error", err.Error()))
			}
		}()
	}

	if err := sim.Run(ctx); err != nil {
		log.Error(ctx, "run ended with an unresolved error", logging.String("error", err.Error()))
	}

	reg := model.OutputStatistics()
	altitude, _ := reg.Persistent("satellite.altitude_km")
	elevation, _ := reg.Tally("station.elevation_deg")

	fmt.Printf("final state: %s\n", sim.State())
	if altitude != nil {
		altitude.Flush(sim.Now())
		fmt.Printf("altitude_km: mean=%.2f min=%.2f max=%.2f\n", altitude.Mean(), altitude.Min(), altitude.Max())
	}
	if elevation != nil {
		fmt.Printf("elevation_deg: n=%d mean=%.2f min=%.2f max=%.2f\n", elevation.Count(), elevation.Mean(), elevation.Min(), elevation.Max())
	}

	if *metricsAddr != "" {
		if err := http.ListenAndServe(*metricsAddr, metrics.Handler()); err != nil {
			log.Error(ctx, "metrics server stopped", logging.String("error", err.Error()))
		}
	}
}
