// Package orbit is the reference simulation model: a single satellite
// propagated by SGP4 against a fixed ground station, wired up as a
// kernel.Model so its events exercise the scheduling kernel and its
// measurements exercise the stats observers end to end.
package orbit

import "math"

// EarthRadiusKm is the mean Earth radius used throughout this package's
// geometry (kilometres).
const EarthRadiusKm = 6371.0

// Vec3 is an ECEF-style vector in kilometres.
type Vec3 struct {
	X, Y, Z float64
}

// DistanceTo returns the straight-line distance between two points.
func (v Vec3) DistanceTo(other Vec3) float64 {
	return v.Sub(other).Norm()
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// Sub returns v - other.
func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{X: v.X - other.X, Y: v.Y - other.Y, Z: v.Z - other.Z}
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Altitude returns the vector's height above the Earth's surface, assuming a
// spherical Earth of radius EarthRadiusKm.
func (v Vec3) Altitude() float64 {
	return v.Norm() - EarthRadiusKm
}

// LineOfSight reports whether the straight segment between a and b clears
// the Earth: if the segment intersects the sphere of radius EarthRadiusKm,
// the Earth blocks the view and LineOfSight returns false.
func LineOfSight(a, b Vec3) bool {
	v := b.Sub(a)
	denom := v.Dot(v)
	if denom == 0 {
		// Degenerate case: coincident points. Outside Earth counts as clear.
		return a.Dot(a) > EarthRadiusKm*EarthRadiusKm
	}

	// t minimizes |a + t*v|^2 over t in R; clamp to the segment [0, 1].
	t := -a.Dot(v) / denom
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	closest := Vec3{X: a.X + v.X*t, Y: a.Y + v.Y*t, Z: a.Z + v.Z*t}
	return closest.Dot(closest) > EarthRadiusKm*EarthRadiusKm
}

// ElevationDegrees returns the elevation angle of target as seen from
// observer, in degrees: 0 is the geometric horizon, 90 is directly overhead.
func ElevationDegrees(observer, target Vec3) float64 {
	v := target.Sub(observer)
	vNorm := v.Norm()
	if vNorm == 0 {
		return 90
	}

	r := observer.Norm()
	if r == 0 {
		return 90
	}
	zenith := Vec3{X: observer.X / r, Y: observer.Y / r, Z: observer.Z / r}

	cosGamma := v.Dot(zenith) / vNorm
	if cosGamma > 1 {
		cosGamma = 1
	} else if cosGamma < -1 {
		cosGamma = -1
	}
	gammaDeg := math.Acos(cosGamma) * 180.0 / math.Pi
	return 90.0 - gammaDeg
}
