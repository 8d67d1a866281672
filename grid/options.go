package grid

import (
	"runtime"
	"time"
)

// parallelThreshold is the minimum entity count for ForEachEntity to fan
// out. Below this a single goroutine is faster.
const parallelThreshold = 64

// BuildStats summarises a finished build for an Observer.
type BuildStats struct {
	Entities     int
	Boxes        int
	Dims         [3]int
	NonEmpty     int
	MaxOccupancy int
	Duration     time.Duration
}

// Observer receives diagnostics from Build. Implementations must not retain
// the grid.
type Observer interface {
	GridBuilt(stats BuildStats)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(BuildStats)

// GridBuilt calls f(stats).
func (f ObserverFunc) GridBuilt(stats BuildStats) { f(stats) }

type options struct {
	workers   int
	threshold int
	observer  Observer
}

func defaultOptions() options {
	return options{
		workers:   runtime.GOMAXPROCS(0),
		threshold: parallelThreshold,
	}
}

// Option configures Build.
type Option func(*options)

// WithWorkers sets the number of goroutines ForEachEntity fans out to.
// Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithParallelThreshold sets the entity count below which ForEachEntity runs
// on the calling goroutine. Zero always fans out.
func WithParallelThreshold(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.threshold = n
		}
	}
}

// WithObserver attaches an observer notified once the build completes.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}
