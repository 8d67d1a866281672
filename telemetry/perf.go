package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the simulation step.
const (
	PhaseSnapshot    = "snapshot"
	PhaseGridBuild   = "grid_build"
	PhaseInteraction = "interaction"
	PhaseIntegrate   = "integrate"
	PhaseTelemetry   = "telemetry"
)

// Phases lists the step phases in execution order.
var Phases = []string{
	PhaseSnapshot, PhaseGridBuild, PhaseInteraction, PhaseIntegrate, PhaseTelemetry,
}

// StepTiming is the wall time of one step split by phase, together with the
// shape of the grid that step built.
type StepTiming struct {
	Total    time.Duration
	Phases   map[string]time.Duration
	Boxes    int
	Entities int
}

// PerfCollector keeps the timings of the last windowSize steps.
type PerfCollector struct {
	now func() time.Time

	window []StepTiming
	next   int
	filled int

	current    StepTiming
	stepStart  time.Time
	phaseStart time.Time
	phase      string
}

// NewPerfCollector creates a collector averaging over windowSize steps.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		now:    time.Now,
		window: make([]StepTiming, windowSize),
	}
}

// BeginStep starts timing a step.
func (p *PerfCollector) BeginStep() {
	p.stepStart = p.now()
	p.current = StepTiming{Phases: make(map[string]time.Duration, len(Phases))}
	p.phase = ""
}

// StartPhase closes the running phase, if any, and starts timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := p.now()
	p.closePhase(now)
	p.phaseStart = now
	p.phase = phase
}

// RecordGrid notes the shape of the grid built in the current step.
func (p *PerfCollector) RecordGrid(boxes, entities int) {
	p.current.Boxes = boxes
	p.current.Entities = entities
}

// EndStep closes the running phase and stores the step in the window. A
// step abandoned before EndStep is never recorded.
func (p *PerfCollector) EndStep() {
	now := p.now()
	p.closePhase(now)
	p.current.Total = now.Sub(p.stepStart)

	p.window[p.next] = p.current
	p.next = (p.next + 1) % len(p.window)
	if p.filled < len(p.window) {
		p.filled++
	}
	p.current = StepTiming{}
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase != "" {
		p.current.Phases[p.phase] += now.Sub(p.phaseStart)
	}
}

// PerfStats aggregates the steps in the window.
type PerfStats struct {
	Steps int

	AvgStep time.Duration
	MinStep time.Duration
	MaxStep time.Duration

	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64 // share of total step time, 0-100

	StepsPerSecond float64

	// Grid shape of the most recent step
	GridBoxes    int
	GridEntities int

	// Phase cost per agent, averaged over the window
	BuildNsPerEntity       float64
	InteractionNsPerEntity float64
}

// Stats aggregates the steps currently in the window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		Steps:    p.filled,
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p.filled == 0 {
		return stats
	}

	latest := p.window[(p.next+len(p.window)-1)%len(p.window)]
	stats.GridBoxes = latest.Boxes
	stats.GridEntities = latest.Entities

	var total time.Duration
	var entities int
	phaseSum := make(map[string]time.Duration)
	for i, st := range p.window[:p.filled] {
		total += st.Total
		entities += st.Entities
		if i == 0 || st.Total < stats.MinStep {
			stats.MinStep = st.Total
		}
		stats.MaxStep = max(stats.MaxStep, st.Total)
		for phase, d := range st.Phases {
			phaseSum[phase] += d
		}
	}

	n := time.Duration(p.filled)
	stats.AvgStep = total / n
	for phase, sum := range phaseSum {
		stats.PhaseAvg[phase] = sum / n
		if total > 0 {
			stats.PhasePct[phase] = float64(sum) / float64(total) * 100
		}
	}
	if stats.AvgStep > 0 {
		stats.StepsPerSecond = float64(time.Second) / float64(stats.AvgStep)
	}
	if entities > 0 {
		stats.BuildNsPerEntity = float64(phaseSum[PhaseGridBuild]) / float64(entities)
		stats.InteractionNsPerEntity = float64(phaseSum[PhaseInteraction]) / float64(entities)
	}
	return stats
}

// LogStats logs the window at info level.
func (s PerfStats) LogStats() {
	slog.Info("perf", "stats", s)
}

// LogValue implements slog.LogValuer. Phases are listed in step order and
// omitted when they took no measurable time.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("steps", s.Steps),
		slog.Int64("avg_step_us", s.AvgStep.Microseconds()),
		slog.Int64("min_step_us", s.MinStep.Microseconds()),
		slog.Int64("max_step_us", s.MaxStep.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}
	if s.GridBoxes > 0 {
		attrs = append(attrs,
			slog.Int("grid_boxes", s.GridBoxes),
			slog.Int("grid_entities", s.GridEntities),
			slog.Float64("build_ns_per_entity", s.BuildNsPerEntity),
			slog.Float64("interaction_ns_per_entity", s.InteractionNsPerEntity),
		)
	}
	for _, phase := range Phases {
		if pct := s.PhasePct[phase]; pct > 0 {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one perf.csv row.
type PerfStatsCSV struct {
	WindowEnd              int32   `csv:"window_end"`
	AvgStepUS              int64   `csv:"avg_step_us"`
	MinStepUS              int64   `csv:"min_step_us"`
	MaxStepUS              int64   `csv:"max_step_us"`
	StepsPerSec            float64 `csv:"steps_per_sec"`
	GridBoxes              int     `csv:"grid_boxes"`
	GridEntities           int     `csv:"grid_entities"`
	BuildNsPerEntity       float64 `csv:"build_ns_per_entity"`
	InteractionNsPerEntity float64 `csv:"interaction_ns_per_entity"`
	SnapshotPct            float64 `csv:"snapshot_pct"`
	GridBuildPct           float64 `csv:"grid_build_pct"`
	InteractionPct         float64 `csv:"interaction_pct"`
	IntegratePct           float64 `csv:"integrate_pct"`
	TelemetryPct           float64 `csv:"telemetry_pct"`
}

// ToCSV flattens the stats into a perf.csv row.
func (s PerfStats) ToCSV(windowEnd int32) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:              windowEnd,
		AvgStepUS:              s.AvgStep.Microseconds(),
		MinStepUS:              s.MinStep.Microseconds(),
		MaxStepUS:              s.MaxStep.Microseconds(),
		StepsPerSec:            s.StepsPerSecond,
		GridBoxes:              s.GridBoxes,
		GridEntities:           s.GridEntities,
		BuildNsPerEntity:       s.BuildNsPerEntity,
		InteractionNsPerEntity: s.InteractionNsPerEntity,
		SnapshotPct:            s.PhasePct[PhaseSnapshot],
		GridBuildPct:           s.PhasePct[PhaseGridBuild],
		InteractionPct:         s.PhasePct[PhaseInteraction],
		IntegratePct:           s.PhasePct[PhaseIntegrate],
		TelemetryPct:           s.PhasePct[PhaseTelemetry],
	}
}
