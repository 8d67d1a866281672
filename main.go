package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pthm-cable/cellgrid/config"
	"github.com/pthm-cable/cellgrid/grid"
	"github.com/pthm-cable/cellgrid/sim"
	"github.com/pthm-cable/cellgrid/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	debug := flag.Bool("debug", false, "Log every grid build")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs, config and agent snapshots")
	positions := flag.String("positions", "", "Agent snapshot CSV to start from (empty = spawn from config)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (empty = disabled)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = time-based)")
	maxSteps := flag.Int("max-steps", 0, "Stop after N steps (0 = until interrupted)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	// Every record carries the run id so interleaved runs can be told apart.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("run_id", uuid.NewString())
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// Set up seed
	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	var agents []telemetry.AgentRecord
	if *positions != "" {
		var err error
		agents, err = telemetry.LoadAgents(*positions)
		if err != nil {
			slog.Error("failed to load positions", "path", *positions, "error", err)
			os.Exit(1)
		}
	}

	observers := telemetry.Observers{telemetry.SlogObserver{Logger: logger}}
	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		observers = append(observers, telemetry.NewPromObserver(reg))
		serveMetrics(*metricsAddr, reg)
	}

	s, err := sim.NewSimulation(sim.Options{
		Config:    cfg,
		Seed:      rngSeed,
		LogStats:  *logStats,
		OutputDir: *outputDir,
		Agents:    agents,
		Observer:  observers,
	})
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting simulation",
		"seed", rngSeed,
		"agents", s.NumAgents(),
		"box_side_length", cfg.Grid.BoxSideLength,
		"max_steps", *maxSteps,
		"output_dir", *outputDir,
	)

	runErr := run(ctx, s, *maxSteps)
	if err := s.Close(); err != nil {
		slog.Error("failed to close simulation", "error", err)
	}
	if runErr != nil {
		slog.Error("simulation stopped", "tick", s.Tick(), "error", runErr)
		if errors.Is(runErr, grid.ErrOutOfDomain) {
			os.Exit(2)
		}
		os.Exit(1)
	}
	slog.Info("simulation finished", "tick", s.Tick(), "sim_time", s.SimTime(), "perf", s.PerfStats())
}

// run steps the simulation until maxSteps is reached, ctx is cancelled or a
// step fails.
func run(ctx context.Context, s *sim.Simulation, maxSteps int) error {
	for {
		if ctx.Err() != nil {
			slog.Info("interrupted", "tick", s.Tick())
			return nil
		}
		if err := s.Step(); err != nil {
			return err
		}
		if maxSteps > 0 && int(s.Tick()) >= maxSteps {
			slog.Info("max steps reached", "tick", s.Tick())
			return nil
		}
	}
}

// serveMetrics exposes reg on /metrics in the background.
func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		slog.Info("metrics server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()
}
