package telemetry

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestSaveLoadAgents(t *testing.T) {
	tmpDir := t.TempDir()

	records := []AgentRecord{
		{ID: 1, X: 1.5, Y: 2.5, Z: 3.5, Substance: 0.25},
		{ID: 2, X: 0, Y: 99.75, Z: 10, Substance: 1},
	}

	path, err := SaveAgents(records, tmpDir, 1000)
	if err != nil {
		t.Fatalf("SaveAgents failed: %v", err)
	}
	if filepath.Base(path) != "agents_1000.csv" {
		t.Errorf("unexpected filename: %s", path)
	}

	loaded, err := LoadAgents(path)
	if err != nil {
		t.Fatalf("LoadAgents failed: %v", err)
	}
	if len(loaded) != len(records) {
		t.Fatalf("loaded %d records, want %d", len(loaded), len(records))
	}
	for i := range records {
		if loaded[i] != records[i] {
			t.Errorf("record %d = %+v, want %+v", i, loaded[i], records[i])
		}
	}
	if got := loaded[0].Position(); got != (r3.Vec{X: 1.5, Y: 2.5, Z: 3.5}) {
		t.Errorf("Position() = %v", got)
	}
}

func TestReadAgentsOptionalColumns(t *testing.T) {
	in := "x,y,z\n1,2,3\n4,5,6\n"
	records, err := ReadAgents(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ReadAgents: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[1].Position() != (r3.Vec{X: 4, Y: 5, Z: 6}) || records[1].Substance != 0 {
		t.Errorf("record = %+v", records[1])
	}
}

func TestReadAgentsMalformed(t *testing.T) {
	if _, err := ReadAgents(strings.NewReader("x,y,z\n1,two,3\n")); err == nil {
		t.Error("expected error for non-numeric coordinate")
	}
}

func TestLoadAgentsMissing(t *testing.T) {
	_, err := LoadAgents(filepath.Join(t.TempDir(), "nope.csv"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("err = %v, want not-exist", err)
	}
}
