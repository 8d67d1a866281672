package telemetry

// Collector accumulates events within windows of steps and produces
// WindowStats.
type Collector struct {
	windowSteps int32

	// Current window tracking
	windowStartTick int32

	// Event counters for current window
	steps          int
	skippedSteps   int
	clampedMoves   int
	boundaryClamps int
}

// NewCollector creates a new stats collector flushing every windowSteps
// steps.
func NewCollector(windowSteps int) *Collector {
	if windowSteps < 1 {
		windowSteps = 1
	}
	return &Collector{windowSteps: int32(windowSteps)}
}

// RecordStep records a completed step.
func (c *Collector) RecordStep() {
	c.steps++
}

// RecordSkippedStep records a step whose time delta was zero.
func (c *Collector) RecordSkippedStep() {
	c.skippedSteps++
}

// RecordClampedMove records a displacement capped at the per-step maximum.
func (c *Collector) RecordClampedMove() {
	c.clampedMoves++
}

// RecordBoundaryClamp records a position pulled back inside the domain.
func (c *Collector) RecordBoundaryClamp() {
	c.boundaryClamps++
}

// ShouldFlush returns true if enough ticks have passed to flush the window.
func (c *Collector) ShouldFlush(currentTick int32) bool {
	return currentTick-c.windowStartTick >= c.windowSteps
}

// Flush produces a WindowStats from the end-of-window sample and the
// counters, then resets counters for the next window.
func (c *Collector) Flush(currentTick int32, sample WindowSample) WindowStats {
	sample.StartTick = c.windowStartTick
	sample.EndTick = currentTick
	stats := ComputeWindowStats(sample)

	stats.Steps = c.steps
	stats.SkippedSteps = c.skippedSteps
	stats.ClampedMoves = c.clampedMoves
	stats.BoundaryClamps = c.boundaryClamps

	// Reset for next window
	c.windowStartTick = currentTick
	c.steps = 0
	c.skippedSteps = 0
	c.clampedMoves = 0
	c.boundaryClamps = 0

	return stats
}

// WindowSteps returns the number of ticks per window.
func (c *Collector) WindowSteps() int32 {
	return c.windowSteps
}
