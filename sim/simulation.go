// Package sim runs an agent-based model on top of the neighbor grid: agents
// live in an ECS world, the grid is rebuilt from their positions every step,
// and pairwise mechanics and substance exchange are computed from each
// agent's Moore neighborhood.
package sim

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/cellgrid/components"
	"github.com/pthm-cable/cellgrid/config"
	"github.com/pthm-cable/cellgrid/grid"
	"github.com/pthm-cable/cellgrid/telemetry"
)

// Options configures a Simulation.
type Options struct {
	Config    *config.Config // nil = config.Cfg()
	Seed      int64
	LogStats  bool
	OutputDir string

	// Agents seeds the population from a snapshot instead of spawning
	// population.initial agents.
	Agents []telemetry.AgentRecord

	// Observer is notified after every grid build. nil = log at debug level.
	Observer grid.Observer

	// StatsCallback receives every flushed stats window.
	StatsCallback func(telemetry.WindowStats)
}

// Simulation holds the complete simulation state.
type Simulation struct {
	cfg   *config.Config
	world *ecs.World
	rng   *rand.Rand
	seed  int64

	agentMapper *ecs.Map5[
		components.Position,
		components.Velocity,
		components.Force,
		components.Substance,
		components.Agent,
	]
	agentFilter *ecs.Filter5[
		components.Position,
		components.Velocity,
		components.Force,
		components.Substance,
		components.Agent,
	]

	// Individual component mappers for lookups
	posMap   *ecs.Map1[components.Position]
	velMap   *ecs.Map1[components.Velocity]
	forceMap *ecs.Map1[components.Force]
	subMap   *ecs.Map1[components.Substance]

	// Neighbor grid from the last completed build
	grid     *grid.Grid
	dims     [3]int
	observer grid.Observer
	cutoff   float64

	parallel *parallelState
	visit    grid.Visitor

	// Telemetry
	collector     *telemetry.Collector
	perfCollector *telemetry.PerfCollector
	outputManager *telemetry.OutputManager
	statsCallback func(telemetry.WindowStats)
	logStats      bool
	occupancy     []int

	// State
	tick    int32
	simTime float64
	nextID  uint32
}

// NewSimulation creates a simulation and spawns its initial population.
func NewSimulation(opts Options) (*Simulation, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Cfg()
	}

	observer := opts.Observer
	if observer == nil {
		observer = telemetry.SlogObserver{}
	}

	// An empty build validates the layout before anything is spawned.
	empty, err := grid.Build(nil, cfg.Grid.BoxSideLength, cfg.Derived.DomainMax)
	if err != nil {
		return nil, fmt.Errorf("creating grid: %w", err)
	}

	world := ecs.NewWorld()
	s := &Simulation{
		cfg:   cfg,
		world: world,
		rng:   rand.New(rand.NewSource(opts.Seed)),
		seed:  opts.Seed,
		agentMapper: ecs.NewMap5[
			components.Position,
			components.Velocity,
			components.Force,
			components.Substance,
			components.Agent,
		](world),
		agentFilter: ecs.NewFilter5[
			components.Position,
			components.Velocity,
			components.Force,
			components.Substance,
			components.Agent,
		](world),
		posMap:   ecs.NewMap1[components.Position](world),
		velMap:   ecs.NewMap1[components.Velocity](world),
		forceMap: ecs.NewMap1[components.Force](world),
		subMap:   ecs.NewMap1[components.Substance](world),

		grid:     empty,
		dims:     empty.Dims(),
		observer: observer,
		cutoff:   cfg.Derived.InteractionRadius,
		parallel: newParallelState(cfg.Grid.Workers, cfg.Grid.ParallelThreshold),

		collector:     telemetry.NewCollector(cfg.Telemetry.StatsWindow),
		perfCollector: telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		statsCallback: opts.StatsCallback,
		logStats:      opts.LogStats,
	}
	s.visit = s.interact

	om, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, err
	}
	s.outputManager = om
	if err := om.WriteConfig(cfg); err != nil {
		om.Close()
		return nil, err
	}

	if opts.Agents != nil {
		s.spawnFromRecords(opts.Agents)
	} else {
		s.spawnInitialPopulation()
	}
	return s, nil
}

// spawnInitialPopulation creates population.initial agents, a fraction of
// them packed into a ball at the domain center and the rest uniform.
// Initial substance follows a smooth noise field around substance.initial.
func (s *Simulation) spawnInitialPopulation() {
	pop := &s.cfg.Population
	side := s.cfg.Grid.BoxSideLength
	extent := r3.Vec{
		X: side * float64(s.dims[0]),
		Y: side * float64(s.dims[1]),
		Z: side * float64(s.dims[2]),
	}
	center := r3.Scale(0.5, extent)
	clustered := int(math.Round(float64(pop.Initial) * pop.ClusterFraction))
	noise := opensimplex.NewNormalized(s.seed)

	for i := 0; i < pop.Initial; i++ {
		var p r3.Vec
		if i < clustered {
			p = r3.Add(center, r3.Scale(pop.ClusterRadius*math.Cbrt(s.rng.Float64()), s.randomDirection()))
		} else {
			p = r3.Vec{
				X: s.rng.Float64() * extent.X,
				Y: s.rng.Float64() * extent.Y,
				Z: s.rng.Float64() * extent.Z,
			}
		}
		p, _ = ClampToDomain(p, side, s.dims)

		sc := s.cfg.Substance.NoiseScale
		n := noise.Eval3(p.X*sc, p.Y*sc, p.Z*sc)
		amount := s.cfg.Substance.Initial + s.cfg.Substance.InitialNoise*(2*n-1)

		s.spawnAgent(s.nextID, p, max(amount, 0))
		s.nextID++
	}
}

// spawnFromRecords recreates agents from a snapshot. Positions are taken as
// given; one outside the grid fails the first step.
func (s *Simulation) spawnFromRecords(records []telemetry.AgentRecord) {
	for _, r := range records {
		s.spawnAgent(r.ID, r.Position(), r.Substance)
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
}

func (s *Simulation) spawnAgent(id uint32, p r3.Vec, amount float64) ecs.Entity {
	pos := components.Position{Vec: p}
	vel := components.Velocity{}
	force := components.Force{}
	sub := components.Substance{Amount: amount}
	agent := components.Agent{ID: id, Radius: s.cfg.Mechanics.AgentRadius}
	return s.agentMapper.NewEntity(&pos, &vel, &force, &sub, &agent)
}

// randomDirection returns a uniformly distributed unit vector.
func (s *Simulation) randomDirection() r3.Vec {
	z := 2*s.rng.Float64() - 1
	phi := 2 * math.Pi * s.rng.Float64()
	r := math.Sqrt(1 - z*z)
	return r3.Vec{X: r * math.Cos(phi), Y: r * math.Sin(phi), Z: z}
}

// Step advances the simulation by one time step: snapshot agents, rebuild
// the grid, compute interactions and apply them. A failed grid build aborts
// the step before any agent state changes.
func (s *Simulation) Step() error {
	dt := s.cfg.Mechanics.DT
	if dt == 0 {
		s.tick++
		s.collector.RecordSkippedStep()
		s.flushTelemetry()
		return nil
	}

	s.perfCollector.BeginStep()

	s.perfCollector.StartPhase(telemetry.PhaseSnapshot)
	s.snapshotAgents()

	s.perfCollector.StartPhase(telemetry.PhaseGridBuild)
	// Queries run on the simulation's own worker pool, so the grid only
	// needs the observer.
	g, err := grid.Build(s.parallel.positions, s.cfg.Grid.BoxSideLength, s.cfg.Derived.DomainMax,
		grid.WithObserver(s.observer))
	if err != nil {
		return fmt.Errorf("building grid at tick %d: %w", s.tick, err)
	}
	s.grid = g
	s.perfCollector.RecordGrid(g.NumBoxes(), g.NumEntities())

	s.perfCollector.StartPhase(telemetry.PhaseInteraction)
	s.computeInteractions()

	s.perfCollector.StartPhase(telemetry.PhaseIntegrate)
	s.applyIntents(dt)

	s.tick++
	s.simTime += dt
	s.collector.RecordStep()

	s.perfCollector.StartPhase(telemetry.PhaseTelemetry)
	s.flushTelemetry()

	s.perfCollector.EndStep()
	return nil
}

// Tick returns the number of steps taken.
func (s *Simulation) Tick() int32 {
	return s.tick
}

// SimTime returns the simulated time in seconds.
func (s *Simulation) SimTime() float64 {
	return s.simTime
}

// NumAgents returns the population size.
func (s *Simulation) NumAgents() int {
	n := 0
	query := s.agentFilter.Query()
	for query.Next() {
		n++
	}
	return n
}

// Grid returns the grid from the last completed step. Entity ids index the
// agents in query order at the start of that step.
func (s *Simulation) Grid() *grid.Grid {
	return s.grid
}

// Agents returns the current agent state in query order.
func (s *Simulation) Agents() []telemetry.AgentRecord {
	var records []telemetry.AgentRecord
	query := s.agentFilter.Query()
	for query.Next() {
		pos, _, _, sub, agent := query.Get()
		records = append(records, telemetry.AgentRecord{
			ID:        agent.ID,
			X:         pos.X,
			Y:         pos.Y,
			Z:         pos.Z,
			Substance: sub.Amount,
		})
	}
	return records
}

// PerfStats returns timing statistics over the recent window.
func (s *Simulation) PerfStats() telemetry.PerfStats {
	return s.perfCollector.Stats()
}

// Close stops the worker pool, writes a final agent snapshot if output is
// enabled and closes output files.
func (s *Simulation) Close() error {
	s.stopParallelWorkers()
	if s.outputManager == nil {
		return nil
	}
	path, err := s.outputManager.WriteAgents(s.Agents(), s.tick)
	if err != nil {
		s.outputManager.Close()
		return err
	}
	slog.Info("agent snapshot saved", "path", path, "tick", s.tick)
	return s.outputManager.Close()
}
