// Package grid provides a uniform 3D box grid for neighbor queries over
// point-like agents.
//
// A Grid is built once per position snapshot and is read-only afterwards.
// Each box threads its members through a shared successor table, so the
// whole structure is two flat arrays regardless of how agents cluster.
package grid

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// BoxCoord is the integer coordinate of a box along x, y and z.
type BoxCoord struct {
	X, Y, Z int
}

// In reports whether c lies inside a grid with the given box counts per axis.
func (c BoxCoord) In(dims [3]int) bool {
	return c.X >= 0 && c.X < dims[0] &&
		c.Y >= 0 && c.Y < dims[1] &&
		c.Z >= 0 && c.Z < dims[2]
}

// Add returns c shifted by the given per-axis offsets.
func (c BoxCoord) Add(dx, dy, dz int) BoxCoord {
	return BoxCoord{X: c.X + dx, Y: c.Y + dy, Z: c.Z + dz}
}

// Chebyshev returns the largest per-axis distance between two coordinates.
func Chebyshev(a, b BoxCoord) int {
	return max(absInt(a.X-b.X), absInt(a.Y-b.Y), absInt(a.Z-b.Z))
}

// ToBoxCoord maps a non-negative position to the box containing it.
// Negative components are not meaningful here; Build rejects them first.
func ToBoxCoord(p r3.Vec, side float64) BoxCoord {
	return BoxCoord{
		X: int(math.Floor(p.X / side)),
		Y: int(math.Floor(p.Y / side)),
		Z: int(math.Floor(p.Z / side)),
	}
}

// ToLinearIndex flattens a box coordinate with x varying fastest.
func ToLinearIndex(c BoxCoord, nx, ny int) int {
	return c.Z*nx*ny + c.Y*nx + c.X
}

// FromLinearIndex is the inverse of ToLinearIndex.
func FromLinearIndex(idx, nx, ny int) BoxCoord {
	nxy := nx * ny
	xy := idx % nxy
	return BoxCoord{
		X: xy % nx,
		Y: xy / nx,
		Z: idx / nxy,
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
