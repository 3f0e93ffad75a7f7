package orbit

import (
	"fmt"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// Satellite propagates a single TLE-defined object via SGP4; Propagate
// returns its ECEF position at a requested instant (no position is stored).
type Satellite struct {
	ID   string
	Name string

	sat satellite.Satellite
}

// NewSatellite parses a two-line element set and constructs a Satellite
// ready for propagation. It returns an error if the TLE lines are empty,
// since go-satellite itself panics on malformed input rather than erroring.
func NewSatellite(id, name, tleLine1, tleLine2 string) (*Satellite, error) {
	if tleLine1 == "" || tleLine2 == "" {
		return nil, fmt.Errorf("orbit: satellite %q requires both TLE lines", id)
	}
	sat := satellite.TLEToSat(tleLine1, tleLine2, satellite.GravityWGS72)
	return &Satellite{ID: id, Name: name, sat: sat}, nil
}

// Propagate advances the satellite to the wall-clock instant t and returns
// its ECEF position in kilometres.
func (s *Satellite) Propagate(t time.Time) Vec3 {
	t = t.UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	posECI, _ := satellite.Propagate(s.sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	return Vec3{X: posECEF.X, Y: posECEF.Y, Z: posECEF.Z}
}

// GroundStation is a fixed ECEF observer position (kilometres).
type GroundStation struct {
	ID       string
	Name     string
	Position Vec3
}
