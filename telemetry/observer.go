package telemetry

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pthm-cable/cellgrid/grid"
)

// SlogObserver logs every grid build at debug level.
type SlogObserver struct {
	Logger *slog.Logger // nil = slog.Default()
}

// GridBuilt implements grid.Observer.
func (o SlogObserver) GridBuilt(s grid.BuildStats) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.LogAttrs(context.Background(), slog.LevelDebug, "grid built",
		slog.Int("entities", s.Entities),
		slog.Int("boxes", s.Boxes),
		slog.Int("boxes_x", s.Dims[0]),
		slog.Int("boxes_y", s.Dims[1]),
		slog.Int("boxes_z", s.Dims[2]),
		slog.Int("non_empty", s.NonEmpty),
		slog.Int("max_occupancy", s.MaxOccupancy),
		slog.Int64("build_us", s.Duration.Microseconds()),
	)
}

// PromObserver exports grid build metrics. Metric cardinality is fixed:
// there are no per-agent or per-box labels.
type PromObserver struct {
	buildDuration prometheus.Histogram
	builds        prometheus.Counter
	entities      prometheus.Gauge
	boxes         prometheus.Gauge
	nonEmpty      prometheus.Gauge
	maxOccupancy  prometheus.Gauge
}

// NewPromObserver registers the grid metrics with reg.
func NewPromObserver(reg prometheus.Registerer) *PromObserver {
	f := promauto.With(reg)
	return &PromObserver{
		buildDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "cellgrid_build_duration_seconds",
			Help:    "Time spent building the neighbor grid",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
		builds: f.NewCounter(prometheus.CounterOpts{
			Name: "cellgrid_builds_total",
			Help: "Grids built",
		}),
		entities: f.NewGauge(prometheus.GaugeOpts{
			Name: "cellgrid_entities",
			Help: "Entities in the last grid",
		}),
		boxes: f.NewGauge(prometheus.GaugeOpts{
			Name: "cellgrid_boxes",
			Help: "Boxes in the last grid",
		}),
		nonEmpty: f.NewGauge(prometheus.GaugeOpts{
			Name: "cellgrid_non_empty_boxes",
			Help: "Boxes holding at least one entity in the last grid",
		}),
		maxOccupancy: f.NewGauge(prometheus.GaugeOpts{
			Name: "cellgrid_max_box_occupancy",
			Help: "Largest box member count in the last grid",
		}),
	}
}

// GridBuilt implements grid.Observer.
func (o *PromObserver) GridBuilt(s grid.BuildStats) {
	o.buildDuration.Observe(s.Duration.Seconds())
	o.builds.Inc()
	o.entities.Set(float64(s.Entities))
	o.boxes.Set(float64(s.Boxes))
	o.nonEmpty.Set(float64(s.NonEmpty))
	o.maxOccupancy.Set(float64(s.MaxOccupancy))
}

// Observers fans one build notification out to several observers.
type Observers []grid.Observer

// GridBuilt implements grid.Observer.
func (obs Observers) GridBuilt(s grid.BuildStats) {
	for _, o := range obs {
		if o != nil {
			o.GridBuilt(s)
		}
	}
}
