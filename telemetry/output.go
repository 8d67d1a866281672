package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/pthm-cable/cellgrid/config"
)

// OutputManager handles structured experiment output with CSV logging.
type OutputManager struct {
	dir      string
	gridFile *os.File
	perfFile *os.File

	// Track if headers have been written
	gridHeaderWritten bool
	perfHeaderWritten bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	// Create output directory
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	// Open grid.csv
	gridPath := filepath.Join(dir, "grid.csv")
	f, err := os.Create(gridPath)
	if err != nil {
		return nil, fmt.Errorf("creating grid.csv: %w", err)
	}
	om.gridFile = f

	// Open perf.csv
	perfPath := filepath.Join(dir, "perf.csv")
	f, err = os.Create(perfPath)
	if err != nil {
		om.gridFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	configPath := filepath.Join(om.dir, "config.yaml")
	return cfg.WriteYAML(configPath)
}

// WriteGridStats writes a window stats record to grid.csv.
func (om *OutputManager) WriteGridStats(stats WindowStats) error {
	if om == nil {
		return nil
	}
	if err := writeRecord(om.gridFile, []WindowStats{stats}, &om.gridHeaderWritten); err != nil {
		return fmt.Errorf("writing grid stats: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, windowEnd int32) error {
	if om == nil {
		return nil
	}
	records := []PerfStatsCSV{stats.ToCSV(windowEnd)}
	if err := writeRecord(om.perfFile, records, &om.perfHeaderWritten); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteAgents saves an agent snapshot next to the CSV logs.
func (om *OutputManager) WriteAgents(records []AgentRecord, tick int32) (string, error) {
	if om == nil {
		return "", nil
	}
	return SaveAgents(records, filepath.Join(om.dir, "snapshots"), tick)
}

// writeRecord appends records, emitting the header row on first use only.
func writeRecord(f *os.File, records any, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error

	if om.gridFile != nil {
		if err := om.gridFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if om.perfFile != nil {
		if err := om.perfFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
