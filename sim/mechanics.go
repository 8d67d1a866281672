package sim

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/cellgrid/config"
)

// pairForce returns the signed force magnitude between two agents whose
// centers are dist apart and whose radii sum to contact. Positive values
// pull the agents together.
//
// Overlapping agents repel linearly in the overlap. Separated agents inside
// the interaction radius attract linearly in the gap.
func pairForce(dist, contact float64, mech *config.MechanicsConfig) float64 {
	if dist < contact {
		return -mech.Repulsion * (contact - dist)
	}
	return mech.Adhesion * (dist - contact)
}

// ClampToDomain pulls p back inside the region covered by a grid of dims
// boxes of the given side. It reports whether any axis was changed.
func ClampToDomain(p r3.Vec, side float64, dims [3]int) (r3.Vec, bool) {
	var cx, cy, cz bool
	p.X, cx = clampAxis(p.X, side, dims[0])
	p.Y, cy = clampAxis(p.Y, side, dims[1])
	p.Z, cz = clampAxis(p.Z, side, dims[2])
	return p, cx || cy || cz
}

func clampAxis(v, side float64, n int) (float64, bool) {
	if v >= 0 && math.Floor(v/side) < float64(n) {
		return v, false
	}
	if v < 0 || math.IsNaN(v) {
		return 0, true
	}
	// Step below the upper face until the box index is in range.
	v = math.Nextafter(side*float64(n), 0)
	for v > 0 && math.Floor(v/side) >= float64(n) {
		v = math.Nextafter(v, 0)
	}
	return v, true
}
