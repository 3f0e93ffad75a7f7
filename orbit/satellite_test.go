package orbit

import (
	"testing"
	"time"
)

// issTLE is a real two-line element set for the ISS, also used by the pack's
// own SGP4 motion tests.
const (
	issTLE1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issTLE2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func TestNewSatelliteRejectsEmptyTLE(t *testing.T) {
	if _, err := NewSatellite("iss", "ISS", "", issTLE2); err == nil {
		t.Fatal("expected error for missing first TLE line")
	}
	if _, err := NewSatellite("iss", "ISS", issTLE1, ""); err == nil {
		t.Fatal("expected error for missing second TLE line")
	}
}

func TestSatellitePropagateChangesOverTime(t *testing.T) {
	sat, err := NewSatellite("iss", "ISS", issTLE1, issTLE2)
	if err != nil {
		t.Fatalf("NewSatellite: %v", err)
	}

	t1 := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(5 * time.Minute)

	first := sat.Propagate(t1)
	second := sat.Propagate(t2)

	if first == second {
		t.Fatalf("expected position to change over time, got %+v at both instants", first)
	}
	// The ISS orbits at roughly 400km altitude; sanity-check the magnitude
	// rather than pinning an exact SGP4 output.
	if alt := first.Altitude(); alt < 200 || alt > 600 {
		t.Fatalf("Altitude() = %v, want roughly 200-600km for the ISS", alt)
	}
}
