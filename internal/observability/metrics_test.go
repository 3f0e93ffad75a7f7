package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestKernelCollectorRecordsStepDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewKernelCollector(reg)
	if err != nil {
		t.Fatalf("NewKernelCollector: %v", err)
	}

	collector.ObserveStep(10 * time.Millisecond)

	if count := histogramSampleCount(t, reg, "kernel_step_duration_seconds", nil); count != 1 {
		t.Fatalf("kernel_step_duration_seconds sample_count = %d, want 1", count)
	}
}

func TestKernelCollectorTracksOutcomesAndDepth(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewKernelCollector(reg)
	if err != nil {
		t.Fatalf("NewKernelCollector: %v", err)
	}

	collector.IncEventsProcessed("ok")
	collector.IncEventsProcessed("ok")
	collector.IncEventsProcessed("fault")
	collector.SetEventListDepth(7)
	collector.IncObservations("tally")

	if got := testutil.ToFloat64(collector.EventsProcessedTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("events processed ok = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.EventsProcessedTotal.WithLabelValues("fault")); got != 1 {
		t.Fatalf("events processed fault = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.EventListDepth); got != 7 {
		t.Fatalf("event list depth = %v, want 7", got)
	}
	if got := testutil.ToFloat64(collector.ObservationsTotal.WithLabelValues("tally")); got != 1 {
		t.Fatalf("observations total tally = %v, want 1", got)
	}
}

func TestKernelCollectorHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewKernelCollector(reg)
	if err != nil {
		t.Fatalf("NewKernelCollector: %v", err)
	}
	collector.IncEventsProcessed("ok")
	collector.SetEventListDepth(2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"kernel_events_processed_total",
		"kernel_event_list_depth",
		"kernel_step_duration_seconds",
		"kernel_observations_total",
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func TestNewKernelCollectorReusesExistingOnReRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewKernelCollector(reg)
	if err != nil {
		t.Fatalf("NewKernelCollector: %v", err)
	}
	second, err := NewKernelCollector(reg)
	if err != nil {
		t.Fatalf("second NewKernelCollector (re-registration) should reuse existing collectors: %v", err)
	}
	first.IncEventsProcessed("ok")
	second.IncEventsProcessed("ok")
	if got := testutil.ToFloat64(second.EventsProcessedTotal.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected shared underlying collector, got = %v, want 2", got)
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
