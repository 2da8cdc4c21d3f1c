// Command crowdsim runs one implicit-crowd simulation to convergence (or a
// fixed frame budget) and optionally replays it in a playback window.
// Grounded on the teacher's root main.go (flag parsing, an Options struct
// passed into the constructor, slog JSON to stdout).
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/pthm-cable/crowdsim/config"
	"github.com/pthm-cable/crowdsim/energy"
	"github.com/pthm-cable/crowdsim/params"
	"github.com/pthm-cable/crowdsim/scenario"
	"github.com/pthm-cable/crowdsim/sim"
	"github.com/pthm-cable/crowdsim/telemetry"
	"github.com/pthm-cable/crowdsim/viz"
)

func main() {
	dt := flag.Float64("dt", 0.1, "simulation step size in seconds")
	frames := flag.Int("frames", 1000, "maximum number of steps before giving up on convergence")
	scenarioPath := flag.String("scenario", "", "path to the scenario file (required)")
	parametersPath := flag.String("parameters", "", "path to the key=value engine parameter override file (optional)")
	configPath := flag.String("config", "", "path to an ambient run config YAML file (empty = embedded defaults)")
	seed := flag.Int64("seed", 0, "RNG seed for the playback jitter and tuner evaluation seeds (0 = time-based)")
	logLevel := flag.String("log-level", "info", "info or debug")
	csvPath := flag.String("csv", "", "if set, enables the CSV trajectory sink at this path")
	view := flag.Bool("view", false, "launch the playback viewer after the run completes")
	flag.Parse()

	if *scenarioPath == "" {
		slog.Error("missing required flag", "flag", "-scenario")
		os.Exit(1)
	}

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	level := slog.LevelInfo
	if *logLevel == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	rngSeed := *seed
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}

	scn, err := scenario.Load(*scenarioPath)
	if err != nil {
		slog.Error("failed to load scenario", "path", *scenarioPath, "error", err)
		os.Exit(1)
	}

	prm := energy.DefaultParams()
	if *parametersPath != "" {
		set, err := params.Load(*parametersPath)
		if err != nil {
			slog.Error("failed to load parameter file", "path", *parametersPath, "error", err)
			os.Exit(1)
		}
		if err := prm.ApplyOverrides(set); err != nil {
			slog.Error("failed to apply parameter overrides", "path", *parametersPath, "error", err)
			os.Exit(1)
		}
	}

	engine := sim.New(scn, sim.Options{
		Dt:       *dt,
		MaxSteps: *frames,
		Params:   prm,
		Seed:     rngSeed,
	})
	defer engine.Close()

	if level == slog.LevelDebug {
		engine.Perf = telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	}

	sink, err := telemetry.NewTrajectorySink(*csvPath, cfg.Telemetry.CSVFlushEvery)
	if err != nil {
		slog.Error("failed to open csv trajectory sink", "path", *csvPath, "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	slog.Info("starting simulation",
		"scenario", *scenarioPath,
		"agents", len(scn.Agents),
		"dt", *dt,
		"max_frames", *frames,
		"seed", rngSeed,
	)

	for !engine.Done() {
		engine.Step()

		if err := sink.WriteRows(trajectoryRows(engine)); err != nil {
			slog.Error("failed to write trajectory rows", "error", err)
			os.Exit(1)
		}

		if engine.Perf != nil && cfg.Telemetry.LogEveryNStep > 0 && engine.Iteration()%cfg.Telemetry.LogEveryNStep == 0 {
			engine.Perf.Stats().LogStats()
		}
	}

	slog.Info("simulation finished",
		"converged", engine.Converged(),
		"steps", engine.Iteration(),
		"sim_time", engine.GlobalTime(),
		"tunneling_events", engine.TunnelingEvents(),
	)

	if *view {
		if err := viz.Play(engine.Agents, cfg.Viewer); err != nil {
			slog.Error("viewer failed", "error", err)
			os.Exit(1)
		}
	}
}

func trajectoryRows(engine *sim.Engine) []telemetry.TrajectoryRow {
	rows := make([]telemetry.TrajectoryRow, 0, len(engine.Agents))
	step := engine.Iteration()
	for _, a := range engine.Agents {
		rows = append(rows, telemetry.TrajectoryRow{
			Step:    step,
			AgentID: a.ID,
			GroupID: a.GroupID,
			X:       a.Position.X,
			Y:       a.Position.Y,
			OrientX: a.Orientation.X,
			OrientY: a.Orientation.Y,
			Active:  a.Enabled,
		})
	}
	return rows
}
