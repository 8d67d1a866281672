package telemetry

import (
	"log/slog"
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the distribution of one per-box or per-agent quantity.
type Summary struct {
	Mean float64
	Std  float64
	P10  float64
	P50  float64
	P90  float64
	Max  float64
	Sum  float64
}

// Summarize computes mean, sample standard deviation, empirical quantiles,
// max and sum of values. It returns the zero Summary for empty input and
// does not modify values.
func Summarize(values []float64) Summary {
	n := len(values)
	if n == 0 {
		return Summary{}
	}

	var s Summary
	var variance float64
	s.Mean, variance = stat.MeanVariance(values, nil)
	if n > 1 {
		s.Std = math.Sqrt(variance)
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)
	s.P10 = stat.Quantile(0.10, stat.Empirical, sorted, nil)
	s.P50 = stat.Quantile(0.50, stat.Empirical, sorted, nil)
	s.P90 = stat.Quantile(0.90, stat.Empirical, sorted, nil)
	s.Max = floats.Max(values)
	s.Sum = floats.Sum(values)
	return s
}

// OccupancyStats summarises member counts over non-empty boxes only.
func OccupancyStats(occupancy []int) (nonEmpty int, s Summary) {
	values := make([]float64, 0, len(occupancy))
	for _, n := range occupancy {
		if n > 0 {
			values = append(values, float64(n))
		}
	}
	return len(values), Summarize(values)
}

// WindowStats holds grid and agent statistics sampled at the end of a
// window of steps.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	Agents        int `csv:"agents"`
	Boxes         int `csv:"boxes"`
	NonEmptyBoxes int `csv:"non_empty_boxes"`

	// Members per non-empty box
	OccupancyMean float64 `csv:"occupancy_mean"`
	OccupancyStd  float64 `csv:"occupancy_std"`
	OccupancyP50  float64 `csv:"occupancy_p50"`
	OccupancyP90  float64 `csv:"occupancy_p90"`
	OccupancyMax  float64 `csv:"occupancy_max"`

	// Candidates enumerated per agent (self excluded) and how many of them
	// were inside the interaction radius
	CandidatesMean  float64 `csv:"candidates_mean"`
	CandidatesP90   float64 `csv:"candidates_p90"`
	InteractingMean float64 `csv:"interacting_mean"`
	HitRate         float64 `csv:"hit_rate"`

	SubstanceMean  float64 `csv:"substance_mean"`
	SubstanceStd   float64 `csv:"substance_std"`
	SubstanceTotal float64 `csv:"substance_total"`

	// Events during window
	Steps          int `csv:"steps"`
	SkippedSteps   int `csv:"skipped_steps"`
	ClampedMoves   int `csv:"clamped_moves"`
	BoundaryClamps int `csv:"boundary_clamps"`
}

// WindowSample is the raw per-step data WindowStats is computed from.
type WindowSample struct {
	StartTick, EndTick int32
	SimTimeSec         float64
	Occupancy          []int
	Candidates         []float64
	Interacting        []float64
	Substance          []float64
}

// ComputeWindowStats aggregates a sample into WindowStats.
func ComputeWindowStats(s WindowSample) WindowStats {
	nonEmpty, occ := OccupancyStats(s.Occupancy)
	cand := Summarize(s.Candidates)
	hits := Summarize(s.Interacting)
	sub := Summarize(s.Substance)

	ws := WindowStats{
		WindowStartTick: s.StartTick,
		WindowEndTick:   s.EndTick,
		SimTimeSec:      s.SimTimeSec,
		Agents:          len(s.Candidates),
		Boxes:           len(s.Occupancy),
		NonEmptyBoxes:   nonEmpty,
		OccupancyMean:   occ.Mean,
		OccupancyStd:    occ.Std,
		OccupancyP50:    occ.P50,
		OccupancyP90:    occ.P90,
		OccupancyMax:    occ.Max,
		CandidatesMean:  cand.Mean,
		CandidatesP90:   cand.P90,
		InteractingMean: hits.Mean,
		SubstanceMean:   sub.Mean,
		SubstanceStd:    sub.Std,
		SubstanceTotal:  sub.Sum,
	}
	if cand.Sum > 0 {
		ws.HitRate = hits.Sum / cand.Sum
	}
	return ws
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", int(s.WindowStartTick)),
		slog.Int("window_end", int(s.WindowEndTick)),
		slog.Float64("sim_time", s.SimTimeSec),
		slog.Int("agents", s.Agents),
		slog.Int("boxes", s.Boxes),
		slog.Int("non_empty_boxes", s.NonEmptyBoxes),
		slog.Float64("occupancy_mean", s.OccupancyMean),
		slog.Float64("occupancy_std", s.OccupancyStd),
		slog.Float64("occupancy_p50", s.OccupancyP50),
		slog.Float64("occupancy_p90", s.OccupancyP90),
		slog.Float64("occupancy_max", s.OccupancyMax),
		slog.Float64("candidates_mean", s.CandidatesMean),
		slog.Float64("candidates_p90", s.CandidatesP90),
		slog.Float64("interacting_mean", s.InteractingMean),
		slog.Float64("hit_rate", s.HitRate),
		slog.Float64("substance_mean", s.SubstanceMean),
		slog.Float64("substance_std", s.SubstanceStd),
		slog.Float64("substance_total", s.SubstanceTotal),
		slog.Int("steps", s.Steps),
		slog.Int("skipped_steps", s.SkippedSteps),
		slog.Int("clamped_moves", s.ClampedMoves),
		slog.Int("boundary_clamps", s.BoundaryClamps),
	)
}

// LogStats logs the window stats using slog.
func (s WindowStats) LogStats() {
	slog.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"agents", s.Agents,
		"non_empty_boxes", s.NonEmptyBoxes,
		"occupancy_mean", s.OccupancyMean,
		"occupancy_max", s.OccupancyMax,
		"candidates_mean", s.CandidatesMean,
		"hit_rate", s.HitRate,
		"substance_total", s.SubstanceTotal,
		"clamped_moves", s.ClampedMoves,
		"boundary_clamps", s.BoundaryClamps,
	)
}
