// Command tune runs an offline CMA-ES search over the energy model's
// tunable constants, scoring each candidate by mean steps-to-convergence
// (plus penalties for non-convergence and tunneling) across a fixed set of
// scenario files. Grounded on cmd/optimize/main.go's CmaEsChol wiring and
// per-evaluation CSV log.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/crowdsim/energy"
	"github.com/pthm-cable/crowdsim/scenario"
)

func main() {
	scenarioPaths := flag.String("scenarios", "", "comma-separated list of scenario files to evaluate against (required)")
	dt := flag.Float64("dt", 0.1, "simulation step size in seconds")
	maxSteps := flag.Int("max-steps", 2000, "step budget per scenario evaluation")
	maxEvals := flag.Int("max-evals", 200, "maximum number of CMA-ES evaluations")
	population := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	outputDir := flag.String("output", "", "output directory for the evaluation log and best parameter file (required)")
	flag.Parse()

	if *scenarioPaths == "" {
		slog.Error("missing required flag", "flag", "-scenarios")
		os.Exit(1)
	}
	if *outputDir == "" {
		slog.Error("missing required flag", "flag", "-output")
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}

	var scenarios []*scenario.Scenario
	for _, p := range strings.Split(*scenarioPaths, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		scn, err := scenario.Load(p)
		if err != nil {
			slog.Error("failed to load scenario", "path", p, "error", err)
			os.Exit(1)
		}
		scenarios = append(scenarios, scn)
	}
	if len(scenarios) == 0 {
		slog.Error("no scenarios loaded from -scenarios")
		os.Exit(1)
	}

	vector := NewParamVector()
	evaluator := NewFitnessEvaluator(vector, scenarios, *dt, *maxSteps)

	dim := vector.Dim()
	initX := vector.Normalize(vector.DefaultVector())

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return evaluator.Evaluate(x)
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0,
	}

	popSize := *population
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}
	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	logPath := filepath.Join(*outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		slog.Error("failed to create log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "fitness"}
	for _, spec := range vector.Specs {
		header = append(header, spec.Name)
	}
	logWriter.Write(header)

	evalCount := 0
	bestFitness := float64(1e18)
	var bestParams []float64
	startTime := time.Now()

	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fitness := originalFunc(x)
		evalCount++

		raw := vector.Denormalize(x)
		clamped := vector.Clamp(raw)
		if fitness < bestFitness {
			bestFitness = fitness
			bestParams = append([]float64(nil), clamped...)
		}

		row := []string{strconv.Itoa(evalCount), fmt.Sprintf("%.6f", fitness)}
		for _, v := range clamped {
			row = append(row, fmt.Sprintf("%.6f", v))
		}
		logWriter.Write(row)
		logWriter.Flush()

		slog.Info("evaluation complete",
			"eval", evalCount, "max_evals", *maxEvals,
			"fitness", fitness, "best_fitness", bestFitness,
			"elapsed", time.Since(startTime).Round(time.Second).String(),
		)
		return fitness
	}

	slog.Info("starting parameter search",
		"dim", dim, "population", popSize, "max_evals", *maxEvals, "scenarios", len(scenarios),
	)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		slog.Warn("optimization ended early", "error", err)
	}

	if bestParams == nil {
		bestParams = vector.Denormalize(result.X)
	}

	slog.Info("parameter search complete",
		"evaluations", evalCount,
		"elapsed", time.Since(startTime).Round(time.Second).String(),
		"best_fitness", bestFitness,
	)

	bestPrm := energy.DefaultParams()
	vector.ApplyToParams(&bestPrm, bestParams)

	paramsPath := filepath.Join(*outputDir, "best_params.txt")
	if err := writeParamsFile(paramsPath, bestPrm); err != nil {
		slog.Error("failed to write best parameter file", "error", err)
		os.Exit(1)
	}
	slog.Info("best parameters saved", "path", paramsPath)
}

// writeParamsFile writes prm's tunable fields as a key=value file loadable
// by the params package, the same format cmd/crowdsim's -parameters flag
// consumes.
func writeParamsFile(path string, prm energy.Params) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tune: creating params file: %w", err)
	}
	defer f.Close()

	lines := []string{
		fmt.Sprintf("k=%.6f", prm.K),
		fmt.Sprintf("p=%.6f", prm.P),
		fmt.Sprintf("t0=%.6f", prm.T0),
		fmt.Sprintf("ksi=%.6f", prm.Ksi),
		fmt.Sprintf("eps=%.6f", prm.Eps),
		fmt.Sprintf("repulsive=%.6f", prm.Eta),
		fmt.Sprintf("neighborDist=%.6f", prm.NeighborDist),
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(f, l); err != nil {
			return fmt.Errorf("tune: writing params file: %w", err)
		}
	}
	return nil
}
