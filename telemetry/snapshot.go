package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"gonum.org/v1/gonum/spatial/r3"
)

// AgentRecord is one row of an agent snapshot CSV.
type AgentRecord struct {
	ID        uint32  `csv:"id"`
	X         float64 `csv:"x"`
	Y         float64 `csv:"y"`
	Z         float64 `csv:"z"`
	Substance float64 `csv:"substance"`
}

// Position returns the record's coordinates as a vector.
func (r AgentRecord) Position() r3.Vec {
	return r3.Vec{X: r.X, Y: r.Y, Z: r.Z}
}

// ReadAgents parses an agent snapshot CSV with a header row. Columns other
// than x, y and z are optional.
func ReadAgents(r io.Reader) ([]AgentRecord, error) {
	var records []AgentRecord
	if err := gocsv.Unmarshal(r, &records); err != nil {
		return nil, fmt.Errorf("unmarshal agents: %w", err)
	}
	return records, nil
}

// WriteAgents writes records as CSV with a header row.
func WriteAgents(w io.Writer, records []AgentRecord) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("marshal agents: %w", err)
	}
	return nil
}

// LoadAgents reads an agent snapshot from disk.
func LoadAgents(path string) ([]AgentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	defer f.Close()
	return ReadAgents(f)
}

// SaveAgents writes an agent snapshot for the given tick into dir.
// Returns the filepath where it was saved.
func SaveAgents(records []AgentRecord, dir string, tick int32) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("agents_%d.csv", tick))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := WriteAgents(f, records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	return path, nil
}
