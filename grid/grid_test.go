package grid

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"
)

// randomPositions returns n positions uniformly spread in [0, bound).
func randomPositions(rng *rand.Rand, n int, bound r3.Vec) []r3.Vec {
	out := make([]r3.Vec, n)
	for i := range out {
		out[i] = r3.Vec{
			X: rng.Float64() * bound.X,
			Y: rng.Float64() * bound.Y,
			Z: rng.Float64() * bound.Z,
		}
	}
	return out
}

func mustBuild(t testing.TB, positions []r3.Vec, side float64, bound r3.Vec, opts ...Option) *Grid {
	t.Helper()
	g, err := Build(positions, side, bound, opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

func TestBuildLayout(t *testing.T) {
	tests := []struct {
		name  string
		side  float64
		bound r3.Vec
		want  [3]int
	}{
		{"unit cube", 1, r3.Vec{X: 2, Y: 2, Z: 2}, [3]int{2, 2, 2}},
		{"uneven axes", 10, r3.Vec{X: 100, Y: 30, Z: 10}, [3]int{10, 3, 1}},
		{"bound not a multiple of side", 1, r3.Vec{X: 2.5, Y: 3.9, Z: 1}, [3]int{2, 3, 1}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			g := mustBuild(t, nil, tc.side, tc.bound)
			if g.Dims() != tc.want {
				t.Errorf("Dims() = %v, want %v", g.Dims(), tc.want)
			}
			if g.NumBoxes() != tc.want[0]*tc.want[1]*tc.want[2] {
				t.Errorf("NumBoxes() = %d", g.NumBoxes())
			}
			for i := 0; i < g.NumBoxes(); i++ {
				if !g.Box(i).IsEmpty() {
					t.Fatalf("box %d not empty in an empty grid", i)
				}
			}
		})
	}
}

func TestBuildInvalidConfiguration(t *testing.T) {
	bound := r3.Vec{X: 10, Y: 10, Z: 10}
	tests := []struct {
		name  string
		side  float64
		bound r3.Vec
	}{
		{"zero side", 0, bound},
		{"negative side", -1, bound},
		{"NaN side", math.NaN(), bound},
		{"infinite side", math.Inf(1), bound},
		{"zero bound", 1, r3.Vec{X: 10, Y: 0, Z: 10}},
		{"bound smaller than side", 4, r3.Vec{X: 10, Y: 10, Z: 3}},
		{"NaN bound", 1, r3.Vec{X: math.NaN(), Y: 10, Z: 10}},
		{"infinite bound", 1, r3.Vec{X: 10, Y: 10, Z: math.Inf(1)}},
		{"too many boxes", 1e-6, bound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Build([]r3.Vec{{X: 1, Y: 1, Z: 1}}, tc.side, tc.bound)
			if !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("err = %v, want ErrInvalidConfiguration", err)
			}
			if errors.Is(err, ErrOutOfDomain) {
				t.Errorf("configuration error also matches ErrOutOfDomain: %v", err)
			}
		})
	}
}

func TestBuildOutOfDomain(t *testing.T) {
	bound := r3.Vec{X: 4, Y: 4, Z: 4}
	tests := []struct {
		name string
		p    r3.Vec
	}{
		{"negative x", r3.Vec{X: -1, Y: 0, Z: 0}},
		{"slightly negative z", r3.Vec{X: 1, Y: 1, Z: -1e-9}},
		{"at the bound", r3.Vec{X: 4, Y: 1, Z: 1}},
		{"beyond the bound", r3.Vec{X: 1, Y: 100, Z: 1}},
		{"NaN", r3.Vec{X: math.NaN(), Y: 1, Z: 1}},
		{"infinite", r3.Vec{X: 1, Y: 1, Z: math.Inf(1)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			positions := []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}, tc.p}
			_, err := Build(positions, 1, bound)
			if !errors.Is(err, ErrOutOfDomain) {
				t.Fatalf("err = %v, want ErrOutOfDomain", err)
			}
			var de *OutOfDomainError
			if !errors.As(err, &de) {
				t.Fatalf("err = %v, want *OutOfDomainError", err)
			}
			if de.Entity != 1 {
				t.Errorf("offending entity = %d, want 1", de.Entity)
			}
			if de.Coord.In(de.Dims) {
				t.Errorf("reported coord %+v is inside %v", de.Coord, de.Dims)
			}
		})
	}
}

func TestBuildReportsEveryOffender(t *testing.T) {
	positions := []r3.Vec{
		{X: -1},
		{X: 1, Y: 1, Z: 1},
		{X: 1, Y: 9, Z: 1},
	}
	_, err := Build(positions, 1, r3.Vec{X: 2, Y: 2, Z: 2})

	var got []int
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		t.Fatalf("err = %v, want joined errors", err)
	}
	for _, e := range joined.Unwrap() {
		var de *OutOfDomainError
		if errors.As(e, &de) {
			got = append(got, de.Entity)
		}
	}
	if diff := cmp.Diff([]int{0, 2}, got); diff != "" {
		t.Errorf("offenders mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildCapsReportedErrors(t *testing.T) {
	positions := make([]r3.Vec, 100)
	for i := range positions {
		positions[i] = r3.Vec{X: -1}
	}
	_, err := Build(positions, 1, r3.Vec{X: 2, Y: 2, Z: 2})
	if !errors.Is(err, ErrOutOfDomain) {
		t.Fatalf("err = %v, want ErrOutOfDomain", err)
	}
	joined := err.(interface{ Unwrap() []error })
	if n := len(joined.Unwrap()); n != maxReported+1 {
		t.Errorf("joined %d errors, want %d", n, maxReported+1)
	}
}

func TestBuildConservationAndUniqueness(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	bound := r3.Vec{X: 50, Y: 30, Z: 20}
	positions := randomPositions(rng, 2000, bound)
	g := mustBuild(t, positions, 5, bound)

	total := 0
	seen := make([]int, len(positions))
	for b := 0; b < g.NumBoxes(); b++ {
		total += g.Box(b).Len()
		it := g.Members(b)
		for it.Next() {
			seen[it.ID()]++
			if g.BoxOf(it.ID()) != b {
				t.Fatalf("entity %d walked in box %d but BoxOf says %d", it.ID(), b, g.BoxOf(it.ID()))
			}
		}
	}
	if total != len(positions) {
		t.Errorf("sum of box lengths = %d, want %d", total, len(positions))
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("entity %d seen %d times", id, n)
		}
	}
}

func TestBuildContainment(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	bound := r3.Vec{X: 12, Y: 12, Z: 12}
	positions := randomPositions(rng, 500, bound)
	g := mustBuild(t, positions, 3, bound)

	for i, p := range positions {
		want := ToBoxCoord(p, g.Side())
		if got := g.Coord(g.BoxOf(i)); got != want {
			t.Fatalf("entity %d at %v in box %+v, want %+v", i, p, got, want)
		}
		idx, err := g.BoxAt(p)
		if err != nil {
			t.Fatalf("BoxAt(%v): %v", p, err)
		}
		if idx != g.BoxOf(i) {
			t.Fatalf("BoxAt(%v) = %d, BoxOf = %d", p, idx, g.BoxOf(i))
		}
		if g.Position(i) != p {
			t.Fatalf("Position(%d) = %v, want %v", i, g.Position(i), p)
		}
	}

	if _, err := g.BoxAt(r3.Vec{X: 12, Y: 1, Z: 1}); !errors.Is(err, ErrOutOfDomain) {
		t.Errorf("BoxAt outside = %v, want ErrOutOfDomain", err)
	}
}

func TestOccupancy(t *testing.T) {
	positions := []r3.Vec{
		{X: 0.1, Y: 0.1, Z: 0.1},
		{X: 0.2, Y: 0.2, Z: 0.2},
		{X: 1.5, Y: 1.5, Z: 1.5},
	}
	g := mustBuild(t, positions, 1, r3.Vec{X: 2, Y: 2, Z: 2})
	want := []int{2, 0, 0, 0, 0, 0, 0, 1}
	if diff := cmp.Diff(want, g.Occupancy(nil)); diff != "" {
		t.Errorf("Occupancy mismatch (-want +got):\n%s", diff)
	}
}

func TestObserver(t *testing.T) {
	positions := []r3.Vec{
		{X: 0.1, Y: 0.1, Z: 0.1},
		{X: 0.2, Y: 0.2, Z: 0.2},
		{X: 2.5, Y: 0.5, Z: 0.5},
	}
	var got []BuildStats
	obs := ObserverFunc(func(s BuildStats) { got = append(got, s) })
	mustBuild(t, positions, 1, r3.Vec{X: 3, Y: 2, Z: 1}, WithObserver(obs))

	if len(got) != 1 {
		t.Fatalf("observer called %d times, want 1", len(got))
	}
	s := got[0]
	s.Duration = 0
	want := BuildStats{Entities: 3, Boxes: 6, Dims: [3]int{3, 2, 1}, NonEmpty: 2, MaxOccupancy: 2}
	if diff := cmp.Diff(want, s); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestObserverNotCalledOnFailure(t *testing.T) {
	called := false
	obs := ObserverFunc(func(BuildStats) { called = true })
	if _, err := Build([]r3.Vec{{X: -1}}, 1, r3.Vec{X: 1, Y: 1, Z: 1}, WithObserver(obs)); err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("observer called for a failed build")
	}
}

func BenchmarkBuild(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	bound := r3.Vec{X: 200, Y: 200, Z: 200}
	positions := randomPositions(rng, 100_000, bound)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Build(positions, 10, bound); err != nil {
			b.Fatal(err)
		}
	}
}
