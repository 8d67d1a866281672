package main

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/cellgrid/grid"
	"github.com/pthm-cable/cellgrid/sim"
)

// penaltyCost is returned for side lengths the grid cannot use.
const penaltyCost = 1e15

// Measurement is one evaluated side length.
type Measurement struct {
	Eval        int     `csv:"eval"`
	Side        float64 `csv:"side"`
	BoxesX      int     `csv:"boxes_x"`
	BoxesY      int     `csv:"boxes_y"`
	BoxesZ      int     `csv:"boxes_z"`
	Boxes       int     `csv:"boxes"`
	Candidates  int64   `csv:"candidates"`
	Interacting int64   `csv:"interacting"`
	BuildUs     int64   `csv:"build_us"`
	QueryUs     int64   `csv:"query_us"`
	Cost        float64 `csv:"cost"`
}

// CostEvaluator scores box side lengths on a fixed agent sample. The cost
// of a side is the number of candidate pairs the grid enumerates plus
// boxCost per box allocated. Candidate and box counts depend only on the
// sample, so the cost is deterministic.
type CostEvaluator struct {
	positions []r3.Vec
	world     r3.Vec
	cutoff    float64
	minSide   float64
	maxSide   float64
	boxCost   float64

	mu    sync.Mutex
	evals int
	best  Measurement
	log   []Measurement
}

// NewCostEvaluator creates an evaluator for sides in [minSide, maxSide].
func NewCostEvaluator(positions []r3.Vec, world r3.Vec, cutoff, minSide, maxSide, boxCost float64) *CostEvaluator {
	return &CostEvaluator{
		positions: positions,
		world:     world,
		cutoff:    cutoff,
		minSide:   minSide,
		maxSide:   maxSide,
		boxCost:   boxCost,
		best:      Measurement{Cost: math.Inf(1)},
	}
}

// Normalize maps a side length into [0, 1] over the search range.
func (ce *CostEvaluator) Normalize(side float64) float64 {
	if ce.maxSide == ce.minSide {
		return 0
	}
	return (side - ce.minSide) / (ce.maxSide - ce.minSide)
}

// Denormalize is the inverse of Normalize.
func (ce *CostEvaluator) Denormalize(x float64) float64 {
	return ce.minSide + x*(ce.maxSide-ce.minSide)
}

// Evaluate measures one side length and records it in the log.
func (ce *CostEvaluator) Evaluate(side float64) Measurement {
	m := ce.measure(side)

	ce.mu.Lock()
	defer ce.mu.Unlock()
	ce.evals++
	m.Eval = ce.evals
	ce.log = append(ce.log, m)
	if m.Cost < ce.best.Cost {
		ce.best = m
	}
	return m
}

func (ce *CostEvaluator) measure(side float64) Measurement {
	m := Measurement{Side: side}

	// Outside the range, and below the cutoff the Moore neighborhood misses
	// pairs. Penalise by distance so the simplex walks back.
	lo := max(ce.minSide, ce.cutoff)
	if side < lo || side > ce.maxSide || math.IsNaN(side) {
		dist := math.Max(lo-side, side-ce.maxSide)
		if math.IsNaN(dist) {
			dist = 1
		}
		m.Cost = penaltyCost * (1 + dist)
		return m
	}

	// Measure the layout the simulation builds for this side: whole boxes
	// only, with agents pulled into them.
	layout, err := grid.Build(nil, side, ce.world)
	if err != nil {
		m.Cost = penaltyCost
		return m
	}
	dims := layout.Dims()
	positions := make([]r3.Vec, len(ce.positions))
	for i, p := range ce.positions {
		positions[i], _ = sim.ClampToDomain(p, side, dims)
	}

	start := time.Now()
	g, err := grid.Build(positions, side, ce.world)
	if err != nil {
		m.Cost = penaltyCost
		return m
	}
	m.BuildUs = time.Since(start).Microseconds()
	m.BoxesX, m.BoxesY, m.BoxesZ = dims[0], dims[1], dims[2]
	m.Boxes = g.NumBoxes()

	candidates := make([]int64, len(ce.positions))
	interacting := make([]int64, len(ce.positions))
	cutoff2 := ce.cutoff * ce.cutoff
	start = time.Now()
	g.ForEachEntity(func(i, j int) {
		if i == j {
			return
		}
		candidates[i]++
		if r3.Norm2(r3.Sub(positions[i], positions[j])) < cutoff2 {
			interacting[i]++
		}
	})
	m.QueryUs = time.Since(start).Microseconds()

	for i := range candidates {
		m.Candidates += candidates[i]
		m.Interacting += interacting[i]
	}
	m.Cost = float64(m.Candidates) + ce.boxCost*float64(m.Boxes)
	return m
}

// Best returns the cheapest measurement so far.
func (ce *CostEvaluator) Best() Measurement {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	return ce.best
}

// Log returns every measurement in evaluation order.
func (ce *CostEvaluator) Log() []Measurement {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	return append([]Measurement(nil), ce.log...)
}
