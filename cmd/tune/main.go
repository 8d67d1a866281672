// Package main searches for the grid box side length that minimises neighbor
// query cost on a sample of agents.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/cellgrid/config"
	"github.com/pthm-cable/cellgrid/sim"
	"github.com/pthm-cable/cellgrid/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	positions := flag.String("positions", "", "Agent snapshot CSV to tune on (empty = spawn from config)")
	seed := flag.Int64("seed", 42, "RNG seed for spawning and sampling")
	maxEvals := flag.Int("max-evals", 0, "Maximum number of evaluations (0 = use config)")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}

	// Create output directory
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	// Load base config
	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	baseCfg := config.Cfg()
	tune := baseCfg.Tune

	sample, err := loadSample(baseCfg, *positions, *seed)
	if err != nil {
		log.Fatalf("failed to load agents: %v", err)
	}

	cutoff := baseCfg.Derived.InteractionRadius
	minSide := tune.MinSide
	if minSide == 0 {
		minSide = cutoff
	}
	maxSide := tune.MaxSide
	if maxSide == 0 {
		maxSide = math.Min(baseCfg.World.Width, math.Min(baseCfg.World.Height, baseCfg.World.Depth))
	}
	evals := tune.MaxEvals
	if *maxEvals > 0 {
		evals = *maxEvals
	}

	evaluator := NewCostEvaluator(sample, baseCfg.Derived.DomainMax, cutoff, minSide, maxSide, tune.BoxCost)

	startTime := time.Now()
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			m := evaluator.Evaluate(evaluator.Denormalize(x[0]))
			fmt.Printf("Eval %d/%d: side=%.4f boxes=%d candidates=%d cost=%.0f\n",
				m.Eval, evals, m.Side, m.Boxes, m.Candidates, m.Cost)
			return m.Cost
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: evals,
		Concurrent:      0, // Sequential evaluation
	}
	method := &optimize.NelderMead{}

	// Start from the configured side, or mid-range if it is outside.
	initX := evaluator.Normalize(baseCfg.Grid.BoxSideLength)
	if initX < 0 || initX > 1 {
		initX = 0.5
	}

	fmt.Printf("Tuning box side over [%.4f, %.4f] on %d agents, cutoff=%.4f, max_evals=%d\n",
		minSide, maxSide, len(sample), cutoff, evals)

	if _, err := optimize.Minimize(problem, []float64{initX}, settings, method); err != nil {
		log.Printf("optimization ended: %v", err)
	}

	best := evaluator.Best()
	fmt.Printf("\nTuning complete after %d evaluations in %s\n", len(evaluator.Log()), time.Since(startTime).Round(time.Millisecond))
	fmt.Printf("Best side: %.6f (%dx%dx%d boxes, %d candidate pairs, %d interacting)\n",
		best.Side, best.BoxesX, best.BoxesY, best.BoxesZ, best.Candidates, best.Interacting)

	// Write evaluation log
	logPath := filepath.Join(*outputDir, "tune_log.csv")
	if err := writeLog(logPath, evaluator.Log()); err != nil {
		log.Printf("failed to write log: %v", err)
	}

	if math.IsInf(best.Cost, 1) || best.Cost >= penaltyCost {
		log.Fatal("no usable side length found")
	}

	bestCfg := bestConfig(baseCfg, best.Side, cutoff)
	configOutPath := filepath.Join(*outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		log.Printf("failed to write best config: %v", err)
	} else {
		fmt.Printf("\nBest config saved to: %s\n", configOutPath)
	}
}

// bestConfig returns a copy of base using side, with the interaction radius
// pinned to cutoff so it no longer follows the side.
func bestConfig(base *config.Config, side, cutoff float64) *config.Config {
	cfg := *base
	cfg.Grid.BoxSideLength = side
	cfg.Mechanics.InteractionRadius = cutoff
	cfg.Derived.InteractionRadius = cutoff
	return &cfg
}

// loadSample returns up to tune.sample_agents positions, read from a
// snapshot or spawned the way the simulation spawns them.
func loadSample(cfg *config.Config, path string, seed int64) ([]r3.Vec, error) {
	var records []telemetry.AgentRecord
	if path != "" {
		var err error
		records, err = telemetry.LoadAgents(path)
		if err != nil {
			return nil, err
		}
	} else {
		s, err := sim.NewSimulation(sim.Options{Config: cfg, Seed: seed})
		if err != nil {
			return nil, err
		}
		records = s.Agents()
		s.Close()
	}

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(records), func(i, j int) { records[i], records[j] = records[j], records[i] })
	if n := cfg.Tune.SampleAgents; n > 0 && len(records) > n {
		records = records[:n]
	}

	positions := make([]r3.Vec, len(records))
	for i, r := range records {
		positions[i] = r.Position()
	}
	return positions, nil
}

func writeLog(path string, records []Measurement) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.Marshal(records, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
