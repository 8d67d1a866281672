package sim

import (
	"runtime"
	"sync"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"
)

// agentSnapshot captures read-only state for parallel processing. The
// snapshot index is the agent's entity id in the grid.
type agentSnapshot struct {
	Entity    ecs.Entity
	ID        uint32
	Radius    float64
	Pos       r3.Vec
	Substance float64
}

// intent captures computed outputs to apply after the parallel phase.
type intent struct {
	Force       r3.Vec
	DSubstance  float64 // Exchange flux per second
	Candidates  int32   // Neighborhood members other than self
	Interacting int32   // Candidates inside the interaction radius
}

// workChunk represents a range of agents for a worker to process.
type workChunk struct {
	start, end int
}

// parallelState holds resources for parallel interaction computation.
type parallelState struct {
	snapshots  []agentSnapshot
	positions  []r3.Vec
	intents    []intent
	numWorkers int
	threshold  int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(workers, threshold int) *parallelState {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &parallelState{
		numWorkers: workers,
		threshold:  threshold,
		snapshots:  make([]agentSnapshot, 0, 512),
		positions:  make([]r3.Vec, 0, 512),
		intents:    make([]intent, 0, 512),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(s *Simulation) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(s)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *parallelState) worker(s *Simulation) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			s.grid.ForEachEntityInRange(chunk.start, chunk.end, s.visit)
			p.doneChan <- struct{}{}
		}
	}
}

// snapshotAgents copies agent state out of the ECS into dense slices.
func (s *Simulation) snapshotAgents() {
	p := s.parallel
	p.snapshots = p.snapshots[:0]
	p.positions = p.positions[:0]

	query := s.agentFilter.Query()
	for query.Next() {
		pos, _, _, sub, agent := query.Get()
		p.snapshots = append(p.snapshots, agentSnapshot{
			Entity:    query.Entity(),
			ID:        agent.ID,
			Radius:    agent.Radius,
			Pos:       pos.Vec,
			Substance: sub.Amount,
		})
		p.positions = append(p.positions, pos.Vec)
	}
}

// computeInteractions fills one intent per snapshot from the current grid.
func (s *Simulation) computeInteractions() {
	p := s.parallel
	n := len(p.snapshots)

	// Resize intents slice
	if cap(p.intents) < n {
		p.intents = make([]intent, n)
	}
	p.intents = p.intents[:n]
	clear(p.intents)

	if n == 0 {
		return
	}

	// Single-threaded for small populations
	if n < p.threshold || p.numWorkers <= 1 {
		s.grid.ForEachEntityInRange(0, n, s.visit)
		return
	}
	s.computeParallel(n)
}

// computeParallel dispatches work to the worker pool.
func (s *Simulation) computeParallel(n int) {
	p := s.parallel

	// Ensure workers are running
	if !p.running {
		p.startWorkers(s)
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	// Dispatch chunks to workers
	chunksDispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			continue
		}

		p.workChan <- workChunk{start: start, end: end}
		chunksDispatched++
	}

	// Wait for all chunks to complete
	for i := 0; i < chunksDispatched; i++ {
		<-p.doneChan
	}
}

// interact accumulates the effect of neighbor j on agent i. It writes only
// to intents[i].
func (s *Simulation) interact(i, j int) {
	if i == j {
		return
	}
	p := s.parallel
	self := &p.snapshots[i]
	other := &p.snapshots[j]
	in := &p.intents[i]

	in.Candidates++
	d := r3.Sub(other.Pos, self.Pos)
	dist := r3.Norm(d)
	if dist >= s.cutoff {
		return
	}
	in.Interacting++

	// Coincident agents have no direction to push along
	if dist > 0 {
		f := pairForce(dist, self.Radius+other.Radius, &s.cfg.Mechanics)
		in.Force = r3.Add(in.Force, r3.Scale(f/dist, d))
	}
	in.DSubstance += s.cfg.Substance.ExchangeRate * (other.Substance - self.Substance)
}

// applyIntents writes computed results back to ECS components.
func (s *Simulation) applyIntents(dt float64) {
	p := s.parallel
	mech := &s.cfg.Mechanics
	sub := &s.cfg.Substance

	for i := range p.snapshots {
		snap := &p.snapshots[i]
		in := &p.intents[i]

		disp := r3.Scale(dt, in.Force)
		if mech.MaxDisplacement > 0 {
			if n := r3.Norm(disp); n > mech.MaxDisplacement {
				disp = r3.Scale(mech.MaxDisplacement/n, disp)
				s.collector.RecordClampedMove()
			}
		}
		if mech.Jitter > 0 {
			disp = r3.Add(disp, r3.Vec{
				X: mech.Jitter * (2*s.rng.Float64() - 1),
				Y: mech.Jitter * (2*s.rng.Float64() - 1),
				Z: mech.Jitter * (2*s.rng.Float64() - 1),
			})
		}

		newPos, clamped := ClampToDomain(r3.Add(snap.Pos, disp), s.cfg.Grid.BoxSideLength, s.dims)
		if clamped {
			s.collector.RecordBoundaryClamp()
		}

		// Get live component pointers
		pos := s.posMap.Get(snap.Entity)
		vel := s.velMap.Get(snap.Entity)
		force := s.forceMap.Get(snap.Entity)
		amount := s.subMap.Get(snap.Entity)
		if pos == nil || vel == nil || force == nil || amount == nil {
			continue
		}

		pos.Vec = newPos
		vel.Vec = r3.Scale(1/dt, r3.Sub(newPos, snap.Pos))
		force.Vec = in.Force
		next := snap.Substance + dt*(in.DSubstance+sub.Secretion-sub.DecayRate*snap.Substance)
		amount.Amount = max(next, 0)
	}
}

// stopParallelWorkers should be called when shutting down the simulation.
func (s *Simulation) stopParallelWorkers() {
	if s.parallel != nil {
		s.parallel.stopWorkers()
	}
}
