package telemetry

import "testing"

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(5)
	if c.WindowSteps() != 5 {
		t.Fatalf("WindowSteps = %d, want 5", c.WindowSteps())
	}

	for tick := int32(1); tick <= 4; tick++ {
		c.RecordStep()
		if c.ShouldFlush(tick) {
			t.Fatalf("flush requested at tick %d", tick)
		}
	}
	c.RecordStep()
	c.RecordSkippedStep()
	c.RecordClampedMove()
	c.RecordClampedMove()
	c.RecordBoundaryClamp()
	if !c.ShouldFlush(5) {
		t.Fatal("expected flush at tick 5")
	}

	stats := c.Flush(5, WindowSample{SimTimeSec: 0.5, Occupancy: []int{1, 0}, Candidates: []float64{0}})
	if stats.WindowStartTick != 0 || stats.WindowEndTick != 5 {
		t.Errorf("window = [%d, %d], want [0, 5]", stats.WindowStartTick, stats.WindowEndTick)
	}
	if stats.Steps != 5 || stats.SkippedSteps != 1 || stats.ClampedMoves != 2 || stats.BoundaryClamps != 1 {
		t.Errorf("counters = %+v", stats)
	}
	if stats.Agents != 1 || stats.NonEmptyBoxes != 1 {
		t.Errorf("sample not aggregated: %+v", stats)
	}

	// Counters reset and the next window starts at the flush tick.
	next := c.Flush(7, WindowSample{})
	if next.WindowStartTick != 5 || next.Steps != 0 || next.ClampedMoves != 0 {
		t.Errorf("after reset = %+v", next)
	}
}

func TestNewCollectorMinimumWindow(t *testing.T) {
	if c := NewCollector(0); c.WindowSteps() != 1 {
		t.Errorf("WindowSteps = %d, want 1", c.WindowSteps())
	}
}
