// Package components defines ECS components for the simulation.
package components

import "gonum.org/v1/gonum/spatial/r3"

// Position is an agent's location in the domain.
type Position struct {
	r3.Vec
}

// Velocity is the displacement an agent made during the last step, per
// second of simulated time.
type Velocity struct {
	r3.Vec
}

// Force is the net pairwise interaction force from the last step.
type Force struct {
	r3.Vec
}

// Substance is the concentration of the coupled chemical an agent carries.
type Substance struct {
	Amount float64
}

// Agent holds identity and shape.
type Agent struct {
	ID     uint32
	Radius float64
}
