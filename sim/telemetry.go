package sim

import (
	"log/slog"

	"github.com/pthm-cable/cellgrid/telemetry"
)

// flushTelemetry checks if the stats window should be flushed.
func (s *Simulation) flushTelemetry() {
	if !s.collector.ShouldFlush(s.tick) {
		return
	}

	stats := s.collector.Flush(s.tick, s.sampleWindow())
	perfStats := s.perfCollector.Stats()

	// Call stats callback if provided
	if s.statsCallback != nil {
		s.statsCallback(stats)
	}

	// Log stats if enabled (console output)
	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}

	// Write to CSV if output manager is enabled
	if s.outputManager != nil {
		if err := s.outputManager.WriteGridStats(stats); err != nil {
			slog.Error("failed to write grid stats", "error", err)
		}
		if err := s.outputManager.WritePerf(perfStats, stats.WindowEndTick); err != nil {
			slog.Error("failed to write perf", "error", err)
		}
	}
}

// sampleWindow collects the last step's per-box and per-agent values.
func (s *Simulation) sampleWindow() telemetry.WindowSample {
	s.occupancy = s.grid.Occupancy(s.occupancy[:0])

	p := s.parallel
	n := len(p.intents)
	sample := telemetry.WindowSample{
		SimTimeSec:  s.simTime,
		Occupancy:   s.occupancy,
		Candidates:  make([]float64, n),
		Interacting: make([]float64, n),
		Substance:   make([]float64, 0, n),
	}
	for i, in := range p.intents {
		sample.Candidates[i] = float64(in.Candidates)
		sample.Interacting[i] = float64(in.Interacting)
	}

	query := s.agentFilter.Query()
	for query.Next() {
		_, _, _, sub, _ := query.Get()
		sample.Substance = append(sample.Substance, sub.Amount)
	}
	return sample
}
