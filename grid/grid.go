package grid

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// maxReported caps the per-entity errors joined into a failed build.
const maxReported = 16

var axisNames = [3]string{"x", "y", "z"}

// Grid is a uniform box partition of [0, domainMax) built from one position
// snapshot. It holds a view of the caller's positions, never a copy; the
// caller must not modify them while the grid is in use.
//
// A Grid is immutable once Build returns, so any number of goroutines may
// query it concurrently.
type Grid struct {
	side  float64
	dims  [3]int
	nxy   int
	store buckets

	// boxOf caches each entity's linear box index from the build pass.
	boxOf     []int32
	positions []r3.Vec

	opts options
}

// Build partitions positions into cubic boxes of the given side length
// covering [0, domainMax). Entity ids are indices into positions.
//
// Build fails with ErrInvalidConfiguration for a non-positive or non-finite
// side length, or a domain bound that holds no box on some axis. It fails
// with ErrOutOfDomain if any position has a negative or non-finite component
// or lies at or beyond the last box on some axis; each offending entity is
// reported as an *OutOfDomainError. Positions are never clamped.
func Build(positions []r3.Vec, side float64, domainMax r3.Vec, opts ...Option) (*Grid, error) {
	start := time.Now()

	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}

	dims, err := layout(side, domainMax)
	if err != nil {
		return nil, err
	}
	if len(positions) > math.MaxInt32 {
		return nil, invalidConfig("%d entities exceed the id space", len(positions))
	}

	g := &Grid{
		side:      side,
		dims:      dims,
		nxy:       dims[0] * dims[1],
		boxOf:     make([]int32, len(positions)),
		positions: positions,
		opts:      o,
	}

	// Locate every entity before touching the buckets so a bad snapshot
	// leaves nothing half-built.
	var errs []error
	rejected := 0
	for i, p := range positions {
		c, ok := locate(p, side, dims)
		if !ok {
			rejected++
			if len(errs) < maxReported {
				errs = append(errs, &OutOfDomainError{Entity: i, Position: p, Coord: c, Dims: dims})
			}
			continue
		}
		g.boxOf[i] = int32(ToLinearIndex(c, dims[0], dims[1]))
	}
	if rejected > 0 {
		if rejected > len(errs) {
			errs = append(errs, fmt.Errorf("%w: %d more entities", ErrOutOfDomain, rejected-len(errs)))
		}
		return nil, errors.Join(errs...)
	}

	g.store = newBuckets(g.nxy*dims[2], len(positions))
	for i, box := range g.boxOf {
		g.store.add(int32(i), int(box))
	}

	if o.observer != nil {
		o.observer.GridBuilt(g.stats(time.Since(start)))
	}
	return g, nil
}

// layout validates the side length and domain bound and returns the number
// of boxes along each axis.
func layout(side float64, domainMax r3.Vec) ([3]int, error) {
	var dims [3]int
	if !(side > 0) || math.IsInf(side, 1) {
		return dims, invalidConfig("box side length %g", side)
	}
	total := 1.0
	for k, bound := range [3]float64{domainMax.X, domainMax.Y, domainMax.Z} {
		if math.IsNaN(bound) || math.IsInf(bound, 0) {
			return dims, invalidConfig("domain bound %g on %s axis", bound, axisNames[k])
		}
		n := math.Floor(bound / side)
		if n < 1 {
			return dims, invalidConfig("domain bound %g on %s axis holds no box of side %g", bound, axisNames[k], side)
		}
		total *= n
		if total > math.MaxInt32 {
			return dims, invalidConfig("domain of %g boxes exceeds the box index space", total)
		}
		dims[k] = int(n)
	}
	return dims, nil
}

// locate returns the box containing p and whether that box is allocated.
func locate(p r3.Vec, side float64, dims [3]int) (BoxCoord, bool) {
	var c [3]int
	ok := true
	for k, v := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(v) {
			c[k] = -1
			ok = false
			continue
		}
		q := math.Floor(v / side)
		switch {
		case q < 0:
			c[k] = int(max(q, math.MinInt32))
			ok = false
		case q >= float64(dims[k]):
			c[k] = int(min(q, math.MaxInt32))
			ok = false
		default:
			c[k] = int(q)
		}
	}
	return BoxCoord{X: c[0], Y: c[1], Z: c[2]}, ok
}

func (g *Grid) stats(d time.Duration) BuildStats {
	s := BuildStats{
		Entities: len(g.positions),
		Boxes:    len(g.store.boxes),
		Dims:     g.dims,
		Duration: d,
	}
	for _, b := range g.store.boxes {
		if b.length == 0 {
			continue
		}
		s.NonEmpty++
		s.MaxOccupancy = max(s.MaxOccupancy, int(b.length))
	}
	return s
}

// Side returns the box side length.
func (g *Grid) Side() float64 { return g.side }

// Dims returns the number of boxes along x, y and z.
func (g *Grid) Dims() [3]int { return g.dims }

// NumBoxes returns the total number of boxes.
func (g *Grid) NumBoxes() int { return len(g.store.boxes) }

// NumEntities returns the number of entities in the snapshot.
func (g *Grid) NumEntities() int { return len(g.positions) }

// Box returns the box at a linear index.
func (g *Grid) Box(idx int) Box { return g.store.boxes[idx] }

// BoxOf returns the linear index of the box holding entity.
func (g *Grid) BoxOf(entity int) int { return int(g.boxOf[entity]) }

// Position returns the snapshot position of entity.
func (g *Grid) Position(entity int) r3.Vec { return g.positions[entity] }

// Coord returns the coordinate of the box at a linear index.
func (g *Grid) Coord(idx int) BoxCoord {
	return FromLinearIndex(idx, g.dims[0], g.dims[1])
}

// Index returns the linear index of an in-range box coordinate.
func (g *Grid) Index(c BoxCoord) int {
	return ToLinearIndex(c, g.dims[0], g.dims[1])
}

// BoxAt returns the linear index of the box containing p, or an error
// matching ErrOutOfDomain if p is outside the grid.
func (g *Grid) BoxAt(p r3.Vec) (int, error) {
	c, ok := locate(p, g.side, g.dims)
	if !ok {
		return 0, &OutOfDomainError{Entity: -1, Position: p, Coord: c, Dims: g.dims}
	}
	return g.Index(c), nil
}

// Occupancy appends the member count of every box, in linear index order,
// to dst.
func (g *Grid) Occupancy(dst []int) []int {
	for _, b := range g.store.boxes {
		dst = append(dst, int(b.length))
	}
	return dst
}
