package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// KernelCollector bundles the Prometheus metrics the simulation kernel
// exposes about its own run: how deep the event list is, how many events
// have been processed (and with what outcome), and how long dispatch takes.
type KernelCollector struct {
	gatherer prometheus.Gatherer

	EventsProcessedTotal *prometheus.CounterVec
	EventListDepth       prometheus.Gauge
	StepDuration         prometheus.Histogram
	ObservationsTotal    *prometheus.CounterVec
}

// NewKernelCollector registers kernel Prometheus metrics against the
// provided registerer, defaulting to the global Prometheus registry when
// reg is nil.
func NewKernelCollector(reg prometheus.Registerer) (*KernelCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	processed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kernel_events_processed_total",
		Help: "Total number of events popped from the event list, labeled by outcome (ok, fault).",
	}, []string{"outcome"})
	processed, err := registerCounterVec(reg, processed, "kernel_events_processed_total")
	if err != nil {
		return nil, err
	}

	depth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "kernel_event_list_depth",
		Help: "Current number of pending events in the event list.",
	}), "kernel_event_list_depth")
	if err != nil {
		return nil, err
	}

	step, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kernel_step_duration_seconds",
		Help:    "Wall-clock duration of a single event dispatch (Step).",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	}), "kernel_step_duration_seconds")
	if err != nil {
		return nil, err
	}

	observations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kernel_observations_total",
		Help: "Total number of observations registered with a statistics observer, labeled by observer kind.",
	}, []string{"kind"})
	observations, err = registerCounterVec(reg, observations, "kernel_observations_total")
	if err != nil {
		return nil, err
	}

	return &KernelCollector{
		gatherer:             gatherer,
		EventsProcessedTotal: processed,
		EventListDepth:       depth,
		StepDuration:         step,
		ObservationsTotal:    observations,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *KernelCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveStep records a single event-dispatch duration.
func (c *KernelCollector) ObserveStep(d time.Duration) {
	if c == nil || c.StepDuration == nil {
		return
	}
	c.StepDuration.Observe(d.Seconds())
}

// SetEventListDepth updates the event-list-depth gauge.
func (c *KernelCollector) SetEventListDepth(n int) {
	if c == nil || c.EventListDepth == nil {
		return
	}
	c.EventListDepth.Set(float64(n))
}

// IncEventsProcessed increments the processed-events counter for outcome.
func (c *KernelCollector) IncEventsProcessed(outcome string) {
	if c == nil || c.EventsProcessedTotal == nil {
		return
	}
	c.EventsProcessedTotal.WithLabelValues(outcome).Inc()
}

// IncObservations increments the observations counter for the given
// observer kind ("tally", "counter", "persistent").
func (c *KernelCollector) IncObservations(kind string) {
	if c == nil || c.ObservationsTotal == nil {
		return
	}
	c.ObservationsTotal.WithLabelValues(kind).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
