// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all simulation configuration parameters.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Grid       GridConfig       `yaml:"grid"`
	Population PopulationConfig `yaml:"population"`
	Mechanics  MechanicsConfig  `yaml:"mechanics"`
	Substance  SubstanceConfig  `yaml:"substance"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Tune       TuneConfig       `yaml:"tune"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds the simulation domain. Agents live in
// [0, width) x [0, height) x [0, depth).
type WorldConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Depth  float64 `yaml:"depth"`
}

// GridConfig holds neighbor grid parameters.
type GridConfig struct {
	BoxSideLength     float64 `yaml:"box_side_length"`
	Workers           int     `yaml:"workers"`            // 0 = GOMAXPROCS
	ParallelThreshold int     `yaml:"parallel_threshold"` // Below this, queries run single-threaded
}

// PopulationConfig holds agent spawning parameters.
type PopulationConfig struct {
	Initial int `yaml:"initial"`
	// Fraction of agents spawned in a dense cluster at the domain center
	// instead of uniformly.
	ClusterFraction float64 `yaml:"cluster_fraction"`
	ClusterRadius   float64 `yaml:"cluster_radius"`
}

// MechanicsConfig holds pairwise interaction and integration parameters.
type MechanicsConfig struct {
	DT                float64 `yaml:"dt"`
	InteractionRadius float64 `yaml:"interaction_radius"` // 0 = grid box side length
	AgentRadius       float64 `yaml:"agent_radius"`
	Repulsion         float64 `yaml:"repulsion"`        // Force per unit overlap
	Adhesion          float64 `yaml:"adhesion"`         // Attraction per unit gap inside the interaction radius
	MaxDisplacement   float64 `yaml:"max_displacement"` // Per step clamp, 0 = unclamped
	Jitter            float64 `yaml:"jitter"`           // Random displacement amplitude per step
}

// SubstanceConfig holds agent-to-agent concentration coupling parameters.
type SubstanceConfig struct {
	Initial      float64 `yaml:"initial"`
	ExchangeRate float64 `yaml:"exchange_rate"` // Diffusive exchange per neighbor per second
	DecayRate    float64 `yaml:"decay_rate"`    // Fraction lost per second
	Secretion    float64 `yaml:"secretion"`     // Produced per agent per second
	InitialNoise float64 `yaml:"initial_noise"` // Amplitude of the spatial noise added to Initial
	NoiseScale   float64 `yaml:"noise_scale"`   // Spatial frequency of the initial noise field
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow int `yaml:"stats_window"` // Steps per grid stats record
	PerfWindow  int `yaml:"perf_window"`  // Steps averaged by the perf collector
}

// TuneConfig holds parameters for the box side length tuner.
type TuneConfig struct {
	MinSide      float64 `yaml:"min_side"` // 0 = interaction radius
	MaxSide      float64 `yaml:"max_side"` // 0 = smallest world extent
	MaxEvals     int     `yaml:"max_evals"`
	SampleAgents int     `yaml:"sample_agents"`
	BoxCost      float64 `yaml:"box_cost"` // Cost of visiting one box relative to one candidate pair
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	DomainMax         r3.Vec  // World extents as a vector
	InteractionRadius float64 // Effective interaction cutoff
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes merged over the embedded
// defaults, then computes derived values and validates the result.
func Parse(data []byte) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Unmarshal into same struct - only overwrites fields present in data
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.DomainMax = r3.Vec{X: c.World.Width, Y: c.World.Height, Z: c.World.Depth}

	c.Derived.InteractionRadius = c.Mechanics.InteractionRadius
	if c.Derived.InteractionRadius == 0 {
		c.Derived.InteractionRadius = c.Grid.BoxSideLength
	}
}

// Validate checks parameter ranges. Grid layout errors are left to the grid
// builder, which reports them per snapshot.
func (c *Config) Validate() error {
	var errs []error
	if c.World.Width <= 0 || c.World.Height <= 0 || c.World.Depth <= 0 {
		errs = append(errs, fmt.Errorf("world extents must be positive, got %gx%gx%g",
			c.World.Width, c.World.Height, c.World.Depth))
	}
	if c.Grid.BoxSideLength <= 0 {
		errs = append(errs, fmt.Errorf("grid.box_side_length must be positive, got %g", c.Grid.BoxSideLength))
	}
	if r := c.Mechanics.InteractionRadius; r < 0 || math.IsNaN(r) {
		errs = append(errs, fmt.Errorf("mechanics.interaction_radius must not be negative or NaN, got %g", r))
	}
	// Pairs further apart than one box can sit in non-adjacent boxes, which
	// the Moore neighborhood never visits.
	if c.Derived.InteractionRadius > c.Grid.BoxSideLength {
		errs = append(errs, fmt.Errorf("interaction radius %g exceeds grid.box_side_length %g",
			c.Derived.InteractionRadius, c.Grid.BoxSideLength))
	}
	if c.Grid.Workers < 0 {
		errs = append(errs, fmt.Errorf("grid.workers must not be negative, got %d", c.Grid.Workers))
	}
	if c.Population.Initial < 0 {
		errs = append(errs, fmt.Errorf("population.initial must not be negative, got %d", c.Population.Initial))
	}
	if c.Population.ClusterFraction < 0 || c.Population.ClusterFraction > 1 {
		errs = append(errs, fmt.Errorf("population.cluster_fraction must be in [0, 1], got %g", c.Population.ClusterFraction))
	}
	if c.Mechanics.DT < 0 {
		errs = append(errs, fmt.Errorf("mechanics.dt must not be negative, got %g", c.Mechanics.DT))
	}
	if c.Substance.InitialNoise < 0 || c.Substance.InitialNoise > c.Substance.Initial {
		errs = append(errs, fmt.Errorf("substance.initial_noise must be in [0, initial], got %g", c.Substance.InitialNoise))
	}
	if c.Mechanics.MaxDisplacement < 0 {
		errs = append(errs, fmt.Errorf("mechanics.max_displacement must not be negative, got %g", c.Mechanics.MaxDisplacement))
	}
	return errors.Join(errs...)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
