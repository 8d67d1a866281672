package config

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Grid.BoxSideLength <= 0 {
		t.Errorf("default box side length = %g", cfg.Grid.BoxSideLength)
	}
	want := r3.Vec{X: cfg.World.Width, Y: cfg.World.Height, Z: cfg.World.Depth}
	if cfg.Derived.DomainMax != want {
		t.Errorf("DomainMax = %v, want %v", cfg.Derived.DomainMax, want)
	}
	if cfg.Derived.InteractionRadius != cfg.Grid.BoxSideLength {
		t.Errorf("InteractionRadius = %g, want box side %g", cfg.Derived.InteractionRadius, cfg.Grid.BoxSideLength)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("grid:\n  box_side_length: 8\nmechanics:\n  interaction_radius: 6\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Grid.BoxSideLength != 8 {
		t.Errorf("box side length = %g, want 8", cfg.Grid.BoxSideLength)
	}
	if cfg.Derived.InteractionRadius != 6 {
		t.Errorf("interaction radius = %g, want 6", cfg.Derived.InteractionRadius)
	}
	// Untouched sections keep their defaults.
	if cfg.World.Width != 100 {
		t.Errorf("world width = %g, want default 100", cfg.World.Width)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"zero side", "grid:\n  box_side_length: 0\n", "box_side_length"},
		{"radius beyond box", "mechanics:\n  interaction_radius: 9\n", "interaction radius"},
		{"negative radius", "mechanics:\n  interaction_radius: -1\n", "interaction_radius"},
		{"nan radius", "mechanics:\n  interaction_radius: .nan\n", "interaction_radius"},
		{"negative world", "world:\n  depth: -1\n", "world extents"},
		{"cluster fraction", "population:\n  cluster_fraction: 2\n", "cluster_fraction"},
		{"noise above initial", "substance:\n  initial_noise: 3\n", "initial_noise"},
		{"malformed", "grid: [", "parsing config file"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte("population:\n  initial: 123\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Population.Initial != 123 {
		t.Errorf("initial = %d, want 123", loaded.Population.Initial)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}
