package grid

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrInvalidConfiguration is returned by Build for an unusable box side
	// length or domain bound.
	ErrInvalidConfiguration = errors.New("grid: invalid configuration")

	// ErrOutOfDomain is returned by Build when a position does not map to an
	// allocated box.
	ErrOutOfDomain = errors.New("grid: position out of domain")
)

// OutOfDomainError describes one entity whose position falls outside the
// allocated boxes. It matches ErrOutOfDomain with errors.Is.
type OutOfDomainError struct {
	Entity   int
	Position r3.Vec
	Coord    BoxCoord
	Dims     [3]int
}

func (e *OutOfDomainError) Error() string {
	return fmt.Sprintf("grid: entity %d at (%g, %g, %g) maps to box (%d, %d, %d) outside %dx%dx%d",
		e.Entity, e.Position.X, e.Position.Y, e.Position.Z,
		e.Coord.X, e.Coord.Y, e.Coord.Z,
		e.Dims[0], e.Dims[1], e.Dims[2])
}

func (e *OutOfDomainError) Unwrap() error { return ErrOutOfDomain }

func invalidConfig(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
