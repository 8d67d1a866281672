package main

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func samplePositions(n int, bound float64) []r3.Vec {
	rng := rand.New(rand.NewSource(1))
	out := make([]r3.Vec, n)
	for i := range out {
		out[i] = r3.Vec{X: rng.Float64() * bound, Y: rng.Float64() * bound, Z: rng.Float64() * bound}
	}
	return out
}

func TestCostEvaluatorPenalisesOutOfRange(t *testing.T) {
	world := r3.Vec{X: 30, Y: 30, Z: 30}
	ce := NewCostEvaluator(samplePositions(100, 30), world, 3, 2, 15, 1)

	for _, side := range []float64{1, 2.5, 16, math.NaN()} {
		if m := ce.Evaluate(side); m.Cost < penaltyCost {
			t.Errorf("side %v: cost %v, want penalty", side, m.Cost)
		}
	}
	if m := ce.Evaluate(5); m.Cost >= penaltyCost {
		t.Errorf("side 5 penalised: %v", m.Cost)
	}
}

func TestCostEvaluatorCountsPairs(t *testing.T) {
	positions := []r3.Vec{{X: 1, Y: 1, Z: 1}, {X: 2, Y: 1, Z: 1}, {X: 9, Y: 9, Z: 9}}
	world := r3.Vec{X: 10, Y: 10, Z: 10}
	ce := NewCostEvaluator(positions, world, 2, 0, 10, 0.01)

	// Side 10 puts everything in one box: 6 ordered candidate pairs, 2 of
	// them within the cutoff.
	m := ce.Evaluate(10)
	if m.Boxes != 1 || m.Candidates != 6 || m.Interacting != 2 {
		t.Fatalf("got %+v", m)
	}
	if math.Abs(m.Cost-6.01) > 1e-9 {
		t.Errorf("cost = %v, want 6.01", m.Cost)
	}

	// Side 2.5 gives 4x4x4 boxes; the far agent is outside both others'
	// neighborhoods.
	m = ce.Evaluate(2.5)
	if m.Boxes != 64 || m.Candidates != 2 || m.Interacting != 2 {
		t.Fatalf("got %+v", m)
	}

	if best := ce.Best(); best.Side != 2.5 {
		t.Errorf("best side = %v, want 2.5", best.Side)
	}
	if log := ce.Log(); len(log) != 2 || log[0].Eval != 1 || log[1].Eval != 2 {
		t.Errorf("log = %+v", log)
	}
}

func TestCostEvaluatorUsesWholeBoxes(t *testing.T) {
	// A 10-wide world with side 3 holds 3 whole boxes per axis; the agent at
	// x=9.5 sits in the dropped partial slab and is pulled into box 2.
	positions := []r3.Vec{{X: 9.5, Y: 1, Z: 1}, {X: 8.5, Y: 1, Z: 1}}
	ce := NewCostEvaluator(positions, r3.Vec{X: 10, Y: 10, Z: 10}, 2, 0, 10, 0.01)

	m := ce.Evaluate(3)
	if m.Cost >= penaltyCost {
		t.Fatalf("side 3 penalised: %+v", m)
	}
	if m.BoxesX != 3 || m.Boxes != 27 {
		t.Errorf("boxes = %dx%dx%d (%d), want 3x3x3 (27)", m.BoxesX, m.BoxesY, m.BoxesZ, m.Boxes)
	}
	if m.Candidates != 2 || m.Interacting != 2 {
		t.Errorf("candidates/interacting = %d/%d, want 2/2", m.Candidates, m.Interacting)
	}
	if math.Abs(m.Cost-2.27) > 1e-9 {
		t.Errorf("cost = %v, want 2.27", m.Cost)
	}
	if positions[0].X != 9.5 {
		t.Error("sample modified")
	}
}

func TestCostEvaluatorPenalisesSideBeyondWorld(t *testing.T) {
	ce := NewCostEvaluator(samplePositions(10, 4), r3.Vec{X: 4, Y: 20, Z: 20}, 1, 1, 10, 0)
	if m := ce.Evaluate(5); m.Cost < penaltyCost {
		t.Errorf("side wider than the world: cost %v, want penalty", m.Cost)
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	ce := NewCostEvaluator(nil, r3.Vec{X: 1, Y: 1, Z: 1}, 1, 2, 12, 0)
	if got := ce.Denormalize(ce.Normalize(7)); math.Abs(got-7) > 1e-12 {
		t.Errorf("round trip = %v", got)
	}
	if ce.Normalize(2) != 0 || ce.Normalize(12) != 1 {
		t.Error("range ends not mapped to 0 and 1")
	}
}
